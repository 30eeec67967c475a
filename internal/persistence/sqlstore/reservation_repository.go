package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository.
type ReservationRepository struct {
	store *Store
}

// NewReservationRepository creates a reservation repository on store.
func NewReservationRepository(store *Store) *ReservationRepository {
	return &ReservationRepository{store: store}
}

var _ persistence.ReservationRepository = (*ReservationRepository)(nil)

type reservationRow struct {
	ID        string         `db:"id"`
	RoomID    string         `db:"room_id"`
	UserID    string         `db:"user_id"`
	RuleID    sql.NullString `db:"rule_id"`
	Purpose   string         `db:"purpose"`
	StartAt   string         `db:"start_at"`
	EndAt     string         `db:"end_at"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
	DeletedAt sql.NullString `db:"deleted_at"`
	DeletedBy sql.NullString `db:"deleted_by"`
}

const reservationColumns = `id, room_id, user_id, rule_id, purpose, start_at, end_at, created_at, updated_at, deleted_at, deleted_by`

const insertReservation = `INSERT INTO reservations (` + reservationColumns + `) VALUES
	(:id, :room_id, :user_id, :rule_id, :purpose, :start_at, :end_at, :created_at, :updated_at, :deleted_at, :deleted_by)`

func toReservationRow(reservation persistence.Reservation) reservationRow {
	return reservationRow{
		ID:        reservation.ID,
		RoomID:    reservation.RoomID,
		UserID:    reservation.UserID,
		RuleID:    nullString(reservation.RuleID),
		Purpose:   reservation.Purpose,
		StartAt:   formatTimestamp(reservation.Start),
		EndAt:     formatTimestamp(reservation.End),
		CreatedAt: formatTimestamp(reservation.CreatedAt),
		UpdatedAt: formatTimestamp(reservation.UpdatedAt),
		DeletedAt: formatNullTimestamp(reservation.DeletedAt),
		DeletedBy: nullString(reservation.DeletedBy),
	}
}

func (r reservationRow) model() (persistence.Reservation, error) {
	reservation := persistence.Reservation{
		ID:        r.ID,
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		RuleID:    stringPtr(r.RuleID),
		Purpose:   r.Purpose,
		DeletedBy: stringPtr(r.DeletedBy),
	}
	var err error
	if reservation.Start, err = parseTimestamp("start_at", r.StartAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTimestamp("end_at", r.EndAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.DeletedAt, err = parseNullTimestamp("deleted_at", r.DeletedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

func reservationModels(rows []reservationRow) ([]persistence.Reservation, error) {
	reservations := make([]persistence.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := row.model()
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// selectActiveReservations returns the active reservations of a room
// overlapping [from, until). Reservations generated by excludeRuleID are skipped.
func selectActiveReservations(ctx context.Context, q sqlx.ExtContext, mapper *ErrorMapper, roomID string, from, until time.Time, excludeRuleID string) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_id = ? AND deleted_at IS NULL AND start_at < ? AND end_at > ?`
	args := []any{roomID, formatTimestamp(until), formatTimestamp(from)}
	if excludeRuleID != "" {
		query += ` AND (rule_id IS NULL OR rule_id <> ?)`
		args = append(args, excludeRuleID)
	}
	query += ` ORDER BY start_at ASC, id ASC`

	var rows []reservationRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, mapper.MapError(err)
	}
	return reservationModels(rows)
}

func softDeleteRuleReservations(ctx context.Context, tx *sqlx.Tx, mapper *ErrorMapper, ruleID, actorID string, at time.Time) (int64, error) {
	stamp := formatTimestamp(at)
	result, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE reservations SET deleted_at = ?, deleted_by = ?, updated_at = ? WHERE rule_id = ? AND deleted_at IS NULL`),
		stamp, actorID, stamp, ruleID)
	if err != nil {
		return 0, mapper.MapError(err)
	}
	return result.RowsAffected()
}

// dayWindow widens a reservation to the surrounding days so the check sees
// every booking that could share its calendar day in any zone.
func dayWindow(reservation persistence.Reservation) (time.Time, time.Time) {
	return reservation.Start.AddDate(0, 0, -1), reservation.End.AddDate(0, 0, 1)
}

// CreateReservation runs check against the room's neighbouring reservations
// and inserts reservation, both inside one transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, check persistence.ReservationConflictCheck) error {
	if reservation.ID == "" || reservation.RoomID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.runCheck(ctx, tx, reservation, check); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, insertReservation, toReservationRow(reservation))
		return r.store.mapper.MapError(err)
	})
}

// UpdateReservation replaces the window and purpose of an active reservation.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation persistence.Reservation, check persistence.ReservationConflictCheck) error {
	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.runCheck(ctx, tx, reservation, check); err != nil {
			return err
		}
		result, err := tx.NamedExecContext(ctx, `UPDATE reservations SET purpose = :purpose, start_at = :start_at,
			end_at = :end_at, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`, toReservationRow(reservation))
		if err != nil {
			return r.store.mapper.MapError(err)
		}
		return rowsAffected(result)
	})
}

func (r *ReservationRepository) runCheck(ctx context.Context, tx *sqlx.Tx, reservation persistence.Reservation, check persistence.ReservationConflictCheck) error {
	if check == nil {
		return nil
	}
	if err := r.store.lockRoom(ctx, tx, reservation.RoomID); err != nil {
		return err
	}
	from, until := dayWindow(reservation)
	existing, err := selectActiveReservations(ctx, tx, r.store.mapper, reservation.RoomID, from, until, "")
	if err != nil {
		return err
	}
	return check(existing)
}

// GetReservation retrieves a reservation by ID, including soft-deleted ones.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	var row reservationRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`), id); err != nil {
		return persistence.Reservation{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListReservations returns the page of reservations matching filter and the total match count.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, int, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.RuleID != "" {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, filter.RuleID)
	}
	if filter.From != nil {
		conditions = append(conditions, "end_at > ?")
		args = append(args, formatTimestamp(*filter.From))
	}
	if filter.Until != nil {
		conditions = append(conditions, "start_at < ?")
		args = append(args, formatTimestamp(*filter.Until))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.store.db.GetContext(ctx, &total, r.store.db.Rebind(`SELECT COUNT(*) FROM reservations`+where), args...); err != nil {
		return nil, 0, r.store.mapper.MapError(err)
	}

	query := page(`SELECT `+reservationColumns+` FROM reservations`+where+` ORDER BY start_at ASC, id ASC`, filter.Limit, filter.Offset)
	var rows []reservationRow
	if err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(query), args...); err != nil {
		return nil, 0, r.store.mapper.MapError(err)
	}
	reservations, err := reservationModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// InsertReservations writes batch with a single multi-row insert in its own
// transaction; either every row is stored or none is. When check is non-nil
// the batch must target a single room and check sees that room's active
// reservations across the batch's span before anything is written.
func (r *ReservationRepository) InsertReservations(ctx context.Context, batch []persistence.Reservation, check persistence.ReservationConflictCheck) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]reservationRow, 0, len(batch))
	for _, reservation := range batch {
		if reservation.ID == "" || reservation.RoomID == "" {
			return persistence.ErrConstraintViolation
		}
		if check != nil && reservation.RoomID != batch[0].RoomID {
			return persistence.ErrConstraintViolation
		}
		rows = append(rows, toReservationRow(reservation))
	}
	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if check != nil {
			if err := r.runBatchCheck(ctx, tx, batch, check); err != nil {
				return err
			}
		}
		_, err := tx.NamedExecContext(ctx, insertReservation, rows)
		return r.store.mapper.MapError(err)
	})
}

func (r *ReservationRepository) runBatchCheck(ctx context.Context, tx *sqlx.Tx, batch []persistence.Reservation, check persistence.ReservationConflictCheck) error {
	first := batch[0]
	if err := r.store.lockRoom(ctx, tx, first.RoomID); err != nil {
		return err
	}
	from, until := dayWindow(first)
	for _, reservation := range batch[1:] {
		f, u := dayWindow(reservation)
		if f.Before(from) {
			from = f
		}
		if u.After(until) {
			until = u
		}
	}
	excludeRuleID := ""
	if first.RuleID != nil {
		excludeRuleID = *first.RuleID
	}
	existing, err := selectActiveReservations(ctx, tx, r.store.mapper, first.RoomID, from, until, excludeRuleID)
	if err != nil {
		return err
	}
	return check(existing)
}

// SoftDeleteReservation marks an active reservation deleted.
func (r *ReservationRepository) SoftDeleteReservation(ctx context.Context, id, actorID string, at time.Time) error {
	stamp := formatTimestamp(at)
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(
		`UPDATE reservations SET deleted_at = ?, deleted_by = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`),
		stamp, actorID, stamp, id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// SoftDeleteRuleReservations marks every active reservation generated by ruleID deleted.
func (r *ReservationRepository) SoftDeleteRuleReservations(ctx context.Context, ruleID, actorID string, at time.Time) (int64, error) {
	var n int64
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = softDeleteRuleReservations(ctx, tx, r.store.mapper, ruleID, actorID, at)
		return err
	})
	return n, err
}
