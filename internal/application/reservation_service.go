package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

// ReservationService books and cancels single reservations.
type ReservationService struct {
	reservations ReservationStore
	rooms        RoomCatalog
	users        UserDirectory
	notifier     Notifier
	audit        AuditSink
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// ReservationServiceDeps captures the collaborators of the reservation service.
type ReservationServiceDeps struct {
	Reservations ReservationStore
	Rooms        RoomCatalog
	Users        UserDirectory
	Notifier     Notifier
	Audit        AuditSink
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewReservationService constructs the service.
func NewReservationService(deps ReservationServiceDeps) *ReservationService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ReservationService{
		reservations: deps.Reservations,
		rooms:        deps.Rooms,
		users:        deps.Users,
		notifier:     deps.Notifier,
		audit:        deps.Audit,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		logger:       defaultLogger(deps.Logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation books a window in a room after checking the room policy
// and the room's other active reservations.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.reservations == nil || s.rooms == nil || s.users == nil {
		err = fmt.Errorf("reservation service dependencies not configured")
		return
	}

	now := s.now()
	if vErr := validateReservationInput(params.Input, now); vErr.HasErrors() {
		err = vErr
		return
	}

	room, err := s.rooms.GetRoom(ctx, params.Input.RoomID)
	if err != nil {
		err = mapLookupError(err, "room", params.Input.RoomID)
		return
	}
	owner, err := s.users.GetUser(ctx, params.Principal.UserID)
	if err != nil {
		err = mapLookupError(err, "user", params.Principal.UserID)
		return
	}
	if !room.AllowsCourse(owner.Course) {
		err = businessError("room %s is restricted to course %s", room.Code, *room.RestrictedCourse)
		return
	}

	candidate := Reservation{
		ID:        s.idGenerator(),
		RoomID:    room.ID,
		UserID:    owner.ID,
		Purpose:   strings.TrimSpace(params.Input.Purpose),
		Start:     params.Input.Start,
		End:       params.Input.End,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err = s.reservations.CreateReservation(ctx, candidate, reservationConflictCheck(candidate)); err != nil {
		err = mapReservationRepoError(err)
		return
	}
	reservation = candidate

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionCreate,
		Entity:   AuditEntityReservation,
		EntityID: reservation.ID,
		ActorID:  owner.ID,
		After:    reservation,
		At:       now,
	})
	if s.notifier != nil {
		if notifyErr := s.notifier.NotifyReservationCreated(context.WithoutCancel(ctx), reservation, owner); notifyErr != nil {
			logger.WarnContext(ctx, "reservation notification failed", "reservation_id", reservation.ID, "error", notifyErr)
		}
	}
	return
}

// UpdateReservation changes the purpose or window of an active reservation.
// Conflicts are re-checked only when the window moves.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateReservation",
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	before, err := s.loadActive(ctx, params.ReservationID)
	if err != nil {
		return
	}
	if !params.Principal.CanManage(before.UserID) {
		err = fmt.Errorf("%w: reservation %s belongs to another user", ErrForbidden, before.ID)
		return
	}

	input := params.Input
	if strings.TrimSpace(input.RoomID) == "" {
		input.RoomID = before.RoomID
	}
	if input.RoomID != before.RoomID {
		vErr := &ValidationError{}
		vErr.add("room_id", CodeInvalidValue, "a reservation cannot move to another room")
		err = vErr
		return
	}

	now := s.now()
	windowChanged := !input.Start.Equal(before.Start) || !input.End.Equal(before.End)
	var vErr *ValidationError
	if windowChanged {
		vErr = validateReservationInput(input, now)
	} else {
		vErr = validateReservationInput(input, time.Time{})
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := before
	updated.Purpose = strings.TrimSpace(input.Purpose)
	updated.Start = input.Start
	updated.End = input.End
	updated.UpdatedAt = now

	var check ReservationConflictCheck
	if windowChanged {
		check = reservationConflictCheck(updated)
	}
	if err = s.reservations.UpdateReservation(ctx, updated, check); err != nil {
		err = mapReservationRepoError(err)
		return
	}
	reservation = updated

	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionUpdate,
		Entity:   AuditEntityReservation,
		EntityID: reservation.ID,
		ActorID:  params.Principal.UserID,
		Before:   before,
		After:    reservation,
		At:       now,
	})
	return
}

// CancelReservationParams wraps the data required to cancel a reservation.
type CancelReservationParams struct {
	Principal     Principal
	ReservationID string
	Reason        *string
}

// CancelReservation soft-deletes an active reservation.
func (s *ReservationService) CancelReservation(ctx context.Context, params CancelReservationParams) error {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
	)

	before, err := s.loadActive(ctx, params.ReservationID)
	if err == nil && !params.Principal.CanManage(before.UserID) {
		err = fmt.Errorf("%w: reservation %s belongs to another user", ErrForbidden, before.ID)
	}
	at := s.now()
	if err == nil {
		err = mapReservationRepoError(s.reservations.SoftDeleteReservation(ctx, before.ID, params.Principal.UserID, at))
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	after := before
	actor := params.Principal.UserID
	after.DeletedAt = &at
	after.DeletedBy = &actor
	recordAudit(ctx, s.audit, logger, AuditRecord{
		Action:   AuditActionCancel,
		Entity:   AuditEntityReservation,
		EntityID: before.ID,
		ActorID:  actor,
		Reason:   params.Reason,
		Before:   before,
		After:    after,
		At:       at,
	})

	logger.InfoContext(ctx, "reservation cancelled")
	return nil
}

// GetReservation returns a reservation, including cancelled ones.
func (s *ReservationService) GetReservation(ctx context.Context, id string) (Reservation, error) {
	if s == nil || s.reservations == nil {
		return Reservation{}, fmt.Errorf("ReservationService is not configured")
	}
	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, mapLookupError(err, "reservation", id)
	}
	return reservation, nil
}

// ListReservations returns a page of reservations matching filter.
func (s *ReservationService) ListReservations(ctx context.Context, filter ReservationFilter) (page Page[Reservation], err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("ReservationService is not configured")
		return
	}
	if filter.From != nil && filter.Until != nil && filter.Until.Before(*filter.From) {
		vErr := &ValidationError{}
		vErr.add("to", CodeInvalidValue, "to must not be before from")
		err = vErr
		return
	}
	filter.Pagination = filter.Pagination.normalize()

	items, total, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	page = Page[Reservation]{
		Items:  items,
		Total:  total,
		Page:   filter.Pagination.Page,
		Size:   filter.Pagination.Size,
		Offset: filter.Pagination.offset(),
	}
	return
}

func (s *ReservationService) loadActive(ctx context.Context, id string) (Reservation, error) {
	if s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation store not configured")
	}
	reservation, err := s.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !reservation.Active() {
		return Reservation{}, fmt.Errorf("%w: reservation %s is cancelled", ErrNotFound, id)
	}
	return reservation, nil
}

// reservationConflictCheck rejects candidate when it overlaps another active
// reservation of the same room.
func reservationConflictCheck(candidate Reservation) ReservationConflictCheck {
	return func(existing []Reservation) error {
		bookings := make([]scheduler.Booking, 0, len(existing))
		for _, r := range existing {
			if r.Active() {
				bookings = append(bookings, toBooking(r))
			}
		}
		conflicts := scheduler.DetectBookingConflicts(bookings, toBooking(candidate))
		if len(conflicts) > 0 {
			return &ConflictError{
				Subject:   fmt.Sprintf("reservation in room %s", candidate.RoomID),
				Conflicts: conflicts,
			}
		}
		return nil
	}
}

func toBooking(r Reservation) scheduler.Booking {
	return scheduler.Booking{
		ID:     r.ID,
		RoomID: r.RoomID,
		RuleID: r.RuleID,
		Window: scheduler.Window{Start: r.Start, End: r.End},
	}
}

// validateReservationInput checks the window. A zero now skips the past check.
func validateReservationInput(input ReservationInput, now time.Time) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", CodeRequired, "room_id is required")
	}
	switch {
	case input.Start.IsZero():
		vErr.add("start", CodeRequired, "start is required")
	case input.End.IsZero():
		vErr.add("end", CodeRequired, "end is required")
	case !input.Start.Before(input.End):
		vErr.add("end", "InvalidTimeRange", "start must be before end")
	case !now.IsZero() && input.Start.Before(now):
		vErr.add("start", "StartInPast", "start is in the past")
	}
	return vErr
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: reservation", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: reservation", ErrAlreadyExists)
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return fmt.Errorf("%w: referenced room, user or rule", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return businessError("reservation rejected by storage constraints")
	}
	return err
}
