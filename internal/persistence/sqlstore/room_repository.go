package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository.
type RoomRepository struct {
	store *Store
}

// NewRoomRepository creates a room repository on store.
func NewRoomRepository(store *Store) *RoomRepository {
	return &RoomRepository{store: store}
}

var _ persistence.RoomRepository = (*RoomRepository)(nil)

type roomRow struct {
	ID               string         `db:"id"`
	BlockID          string         `db:"block_id"`
	Code             string         `db:"code"`
	Capacity         int            `db:"capacity"`
	Resources        jsonColumn     `db:"resources"`
	Restricted       bool           `db:"restricted"`
	RestrictedCourse sql.NullString `db:"restricted_course"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

const roomColumns = `id, block_id, code, capacity, resources, restricted, restricted_course, created_at, updated_at`

func toRoomRow(room persistence.Room) (roomRow, error) {
	resources := room.Resources
	if resources == nil {
		resources = []string{}
	}
	encoded, err := newJSONColumn(resources)
	if err != nil {
		return roomRow{}, err
	}
	return roomRow{
		ID:               room.ID,
		BlockID:          room.BlockID,
		Code:             room.Code,
		Capacity:         room.Capacity,
		Resources:        encoded,
		Restricted:       room.Restricted,
		RestrictedCourse: nullString(room.RestrictedCourse),
		CreatedAt:        formatTimestamp(room.CreatedAt),
		UpdatedAt:        formatTimestamp(room.UpdatedAt),
	}, nil
}

func (r roomRow) model() (persistence.Room, error) {
	room := persistence.Room{
		ID:               r.ID,
		BlockID:          r.BlockID,
		Code:             r.Code,
		Capacity:         r.Capacity,
		Restricted:       r.Restricted,
		RestrictedCourse: stringPtr(r.RestrictedCourse),
	}
	if len(r.Resources.JSONText) > 0 {
		if err := r.Resources.Unmarshal(&room.Resources); err != nil {
			return persistence.Room{}, fmt.Errorf("sqlstore: decode resources: %w", err)
		}
	}
	var err error
	if room.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

// CreateRoom stores a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	row, err := toRoomRow(room)
	if err != nil {
		return err
	}
	_, err = r.store.db.NamedExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES (:id, :block_id, :code, :capacity, :resources, :restricted, :restricted_course, :created_at, :updated_at)`,
		row)
	return r.store.mapper.MapError(err)
}

// UpdateRoom replaces the mutable fields of a room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	row, err := toRoomRow(room)
	if err != nil {
		return err
	}
	result, err := r.store.db.NamedExecContext(ctx,
		`UPDATE rooms SET block_id = :block_id, code = :code, capacity = :capacity, resources = :resources,
			restricted = :restricted, restricted_course = :restricted_course, updated_at = :updated_at WHERE id = :id`,
		row)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var row roomRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+roomColumns+` FROM rooms WHERE id = ?`), id); err != nil {
		return persistence.Room{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListRooms returns rooms ordered by code, optionally restricted to one block.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var args []any
	if filter.BlockID != "" {
		query += ` WHERE block_id = ?`
		args = append(args, filter.BlockID)
	}
	query += ` ORDER BY code ASC, id ASC`

	var rows []roomRow
	if err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(query), args...); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.model()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Rooms referenced by rules or reservations cannot be removed.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(`DELETE FROM rooms WHERE id = ?`), id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}
