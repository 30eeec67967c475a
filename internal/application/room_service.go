package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context, blockID string) ([]Room, error)
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	BlockID          string
	Code             string
	Capacity         int
	Resources        []string
	Restricted       bool
	RestrictedCourse *string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	blocks      BlockRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, blocks BlockRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, blocks, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, blocks BlockRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, blocks: blocks, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	input := normalizeRoomInput(params.Input)
	vErr := validateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureBlockExists(ctx, input.BlockID); err != nil {
		return
	}

	room = Room{
		ID:               s.idGenerator(),
		BlockID:          input.BlockID,
		Code:             input.Code,
		Capacity:         input.Capacity,
		Resources:        input.Resources,
		Restricted:       input.Restricted,
		RestrictedCourse: input.RestrictedCourse,
		CreatedAt:        s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	input := normalizeRoomInput(params.Input)
	if input.BlockID == "" {
		input.BlockID = existing.BlockID
	}
	vErr := validateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if input.BlockID != existing.BlockID {
		if err = s.ensureBlockExists(ctx, input.BlockID); err != nil {
			return
		}
	}

	updated := existing
	updated.BlockID = input.BlockID
	updated.Code = input.Code
	updated.Capacity = input.Capacity
	updated.Resources = input.Resources
	updated.Restricted = input.Restricted
	updated.RestrictedCourse = input.RestrictedCourse
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	return
}

// DeleteRoom removes a room without bookings when requested by an administrator.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin {
		return ErrForbidden
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// GetRoom returns a single room. It also satisfies RoomCatalog.
func (s *RoomService) GetRoom(ctx context.Context, id string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("RoomService is not configured")
	}
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return Room{}, mapLookupError(err, "room", id)
	}
	return room, nil
}

// ListRooms returns the catalog of rooms, optionally limited to one block.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal, blockID string) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
		"block_id", blockID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx, strings.TrimSpace(blockID))
	if err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].BlockID != rooms[j].BlockID {
			return rooms[i].BlockID < rooms[j].BlockID
		}
		if strings.EqualFold(rooms[i].Code, rooms[j].Code) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Code) < strings.ToLower(rooms[j].Code)
	})

	return
}

func (s *RoomService) ensureBlockExists(ctx context.Context, blockID string) error {
	if s.blocks == nil {
		return nil
	}
	if _, err := s.blocks.GetBlock(ctx, blockID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("block_id", CodeInvalidValue, "block does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func normalizeRoomInput(input RoomInput) RoomInput {
	input.BlockID = strings.TrimSpace(input.BlockID)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.RestrictedCourse = normalizeOptionalString(input.RestrictedCourse)

	resources := make([]string, 0, len(input.Resources))
	seen := make(map[string]struct{}, len(input.Resources))
	for _, r := range input.Resources {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		resources = append(resources, r)
	}
	input.Resources = resources

	if !input.Restricted {
		input.RestrictedCourse = nil
	}
	return input
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if input.BlockID == "" {
		vErr.add("block_id", CodeRequired, "block_id is required")
	}
	if input.Code == "" {
		vErr.add("code", CodeRequired, "code is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", CodeInvalidValue, "capacity must be positive")
	}
	if input.Restricted && input.RestrictedCourse == nil {
		vErr.add("restricted_course", CodeRequired, "restricted rooms need a course")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: room code is taken in this block", ErrAlreadyExists)
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return businessError("room is referenced by reservations or rules")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", CodeInvalidValue, "capacity must be positive")
		return vErr
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
