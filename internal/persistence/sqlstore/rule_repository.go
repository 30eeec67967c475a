package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// RecurringRuleRepository implements persistence.RecurringRuleRepository.
type RecurringRuleRepository struct {
	store *Store
}

// NewRecurringRuleRepository creates a recurring rule repository on store.
func NewRecurringRuleRepository(store *Store) *RecurringRuleRepository {
	return &RecurringRuleRepository{store: store}
}

var _ persistence.RecurringRuleRepository = (*RecurringRuleRepository)(nil)

type ruleRow struct {
	ID             string         `db:"id"`
	Identification string         `db:"identification"`
	Kind           string         `db:"kind"`
	Semester       sql.NullString `db:"semester"`
	RoomID         string         `db:"room_id"`
	UserID         string         `db:"user_id"`
	Purpose        string         `db:"purpose"`
	Frequency      string         `db:"frequency"`
	Weekdays       int64          `db:"weekdays"`
	DayOfMonth     int            `db:"day_of_month"`
	StartTime      string         `db:"start_time"`
	EndTime        string         `db:"end_time"`
	StartDate      string         `db:"start_date"`
	EndDate        string         `db:"end_date"`
	Exceptions     jsonColumn     `db:"exceptions"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
	DeletedAt      sql.NullString `db:"deleted_at"`
	DeletedBy      sql.NullString `db:"deleted_by"`
}

const ruleColumns = `id, identification, kind, semester, room_id, user_id, purpose, frequency, weekdays, day_of_month,
	start_time, end_time, start_date, end_date, exceptions, created_at, updated_at, deleted_at, deleted_by`

func toRuleRow(rule persistence.RecurringRule) (ruleRow, error) {
	exceptions := make([]string, 0, len(rule.Exceptions))
	for _, d := range rule.Exceptions {
		exceptions = append(exceptions, formatDate(d))
	}
	encoded, err := newJSONColumn(exceptions)
	if err != nil {
		return ruleRow{}, err
	}
	return ruleRow{
		ID:             rule.ID,
		Identification: rule.Identification,
		Kind:           rule.Kind,
		Semester:       nullString(rule.Semester),
		RoomID:         rule.RoomID,
		UserID:         rule.UserID,
		Purpose:        rule.Purpose,
		Frequency:      rule.Frequency,
		Weekdays:       encodeWeekdays(rule.Weekdays),
		DayOfMonth:     rule.DayOfMonth,
		StartTime:      rule.StartTime,
		EndTime:        rule.EndTime,
		StartDate:      formatDate(rule.StartDate),
		EndDate:        formatDate(rule.EndDate),
		Exceptions:     encoded,
		CreatedAt:      formatTimestamp(rule.CreatedAt),
		UpdatedAt:      formatTimestamp(rule.UpdatedAt),
		DeletedAt:      formatNullTimestamp(rule.DeletedAt),
		DeletedBy:      nullString(rule.DeletedBy),
	}, nil
}

func (r ruleRow) model() (persistence.RecurringRule, error) {
	rule := persistence.RecurringRule{
		ID:             r.ID,
		Identification: r.Identification,
		Kind:           r.Kind,
		Semester:       stringPtr(r.Semester),
		RoomID:         r.RoomID,
		UserID:         r.UserID,
		Purpose:        r.Purpose,
		Frequency:      r.Frequency,
		Weekdays:       decodeWeekdays(r.Weekdays),
		DayOfMonth:     r.DayOfMonth,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		DeletedBy:      stringPtr(r.DeletedBy),
	}

	var raw []string
	if len(r.Exceptions.JSONText) > 0 {
		if err := r.Exceptions.Unmarshal(&raw); err != nil {
			return persistence.RecurringRule{}, fmt.Errorf("sqlstore: decode exceptions: %w", err)
		}
	}
	for _, value := range raw {
		d, err := parseDate("exceptions", value)
		if err != nil {
			return persistence.RecurringRule{}, err
		}
		rule.Exceptions = append(rule.Exceptions, d)
	}

	var err error
	if rule.StartDate, err = parseDate("start_date", r.StartDate); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.EndDate, err = parseDate("end_date", r.EndDate); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.RecurringRule{}, err
	}
	if rule.DeletedAt, err = parseNullTimestamp("deleted_at", r.DeletedAt); err != nil {
		return persistence.RecurringRule{}, err
	}
	return rule, nil
}

func ruleModels(rows []ruleRow) ([]persistence.RecurringRule, error) {
	rules := make([]persistence.RecurringRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.model()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// CreateRecurringRule runs check against the room's competing rules and
// reservations and inserts rule, both inside one transaction.
func (r *RecurringRuleRepository) CreateRecurringRule(ctx context.Context, rule persistence.RecurringRule, check persistence.RuleConflictCheck) error {
	if rule.ID == "" || rule.RoomID == "" {
		return persistence.ErrConstraintViolation
	}
	row, err := toRuleRow(rule)
	if err != nil {
		return err
	}

	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.runCheck(ctx, tx, rule, check); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO recurring_rules (`+ruleColumns+`) VALUES (
			:id, :identification, :kind, :semester, :room_id, :user_id, :purpose, :frequency, :weekdays, :day_of_month,
			:start_time, :end_time, :start_date, :end_date, :exceptions, :created_at, :updated_at, :deleted_at, :deleted_by)`, row)
		return r.store.mapper.MapError(err)
	})
}

// UpdateRecurringRule replaces an active rule. When check is non-nil it runs
// inside the write transaction against every other active rule and reservation.
func (r *RecurringRuleRepository) UpdateRecurringRule(ctx context.Context, rule persistence.RecurringRule, check persistence.RuleConflictCheck) error {
	row, err := toRuleRow(rule)
	if err != nil {
		return err
	}

	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if check != nil {
			if err := r.runCheck(ctx, tx, rule, check); err != nil {
				return err
			}
		}
		result, err := tx.NamedExecContext(ctx, `UPDATE recurring_rules SET
			identification = :identification, purpose = :purpose, frequency = :frequency, weekdays = :weekdays,
			day_of_month = :day_of_month, start_time = :start_time, end_time = :end_time, start_date = :start_date,
			end_date = :end_date, exceptions = :exceptions, updated_at = :updated_at
			WHERE id = :id AND deleted_at IS NULL`, row)
		if err != nil {
			return r.store.mapper.MapError(err)
		}
		return rowsAffected(result)
	})
}

func (r *RecurringRuleRepository) runCheck(ctx context.Context, tx *sqlx.Tx, rule persistence.RecurringRule, check persistence.RuleConflictCheck) error {
	if check == nil {
		return nil
	}
	if err := r.store.lockRoom(ctx, tx, rule.RoomID); err != nil {
		return err
	}

	var rows []ruleRow
	err := tx.SelectContext(ctx, &rows, tx.Rebind(`SELECT `+ruleColumns+` FROM recurring_rules
		WHERE room_id = ? AND deleted_at IS NULL AND id <> ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC, id ASC`),
		rule.RoomID, rule.ID, formatDate(rule.EndDate), formatDate(rule.StartDate))
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	rules, err := ruleModels(rows)
	if err != nil {
		return err
	}

	// Occurrence instants depend on the configured zone; a day of margin on
	// both sides covers every UTC offset.
	reservations, err := selectActiveReservations(ctx, tx, r.store.mapper, rule.RoomID,
		rule.StartDate.AddDate(0, 0, -1), rule.EndDate.AddDate(0, 0, 2), rule.ID)
	if err != nil {
		return err
	}
	return check(rules, reservations)
}

// GetRecurringRule retrieves a rule by ID, including soft-deleted rules.
func (r *RecurringRuleRepository) GetRecurringRule(ctx context.Context, id string) (persistence.RecurringRule, error) {
	var row ruleRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`), id); err != nil {
		return persistence.RecurringRule{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListRecurringRules returns the page of rules matching filter and the total match count.
func (r *RecurringRuleRepository) ListRecurringRules(ctx context.Context, filter persistence.RuleFilter) ([]persistence.RecurringRule, int, error) {
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
	if filter.Frequency != "" {
		conditions = append(conditions, "frequency = ?")
		args = append(args, strings.ToUpper(filter.Frequency))
	}
	if filter.From != nil {
		conditions = append(conditions, "end_date >= ?")
		args = append(args, formatDate(*filter.From))
	}
	if filter.Until != nil {
		conditions = append(conditions, "start_date <= ?")
		args = append(args, formatDate(*filter.Until))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.store.db.GetContext(ctx, &total, r.store.db.Rebind(`SELECT COUNT(*) FROM recurring_rules`+where), args...); err != nil {
		return nil, 0, r.store.mapper.MapError(err)
	}

	query := page(`SELECT `+ruleColumns+` FROM recurring_rules`+where+` ORDER BY start_date ASC, created_at ASC, id ASC`, filter.Limit, filter.Offset)
	var rows []ruleRow
	if err := r.store.db.SelectContext(ctx, &rows, r.store.db.Rebind(query), args...); err != nil {
		return nil, 0, r.store.mapper.MapError(err)
	}
	rules, err := ruleModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// SoftDeleteRecurringRule marks the rule and its active reservations deleted
// in one transaction.
func (r *RecurringRuleRepository) SoftDeleteRecurringRule(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	var cascaded int64
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		stamp := formatTimestamp(at)
		result, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE recurring_rules SET deleted_at = ?, deleted_by = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`),
			stamp, actorID, stamp, id)
		if err != nil {
			return r.store.mapper.MapError(err)
		}
		if err := rowsAffected(result); err != nil {
			return err
		}

		cascaded, err = softDeleteRuleReservations(ctx, tx, r.store.mapper, id, actorID, at)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cascaded, nil
}

// encodeWeekdays packs weekdays (0=Monday..6=Sunday) into a bitmask.
func encodeWeekdays(weekdays []int) int64 {
	var mask int64
	for _, day := range weekdays {
		if day >= 0 && day <= 6 {
			mask |= 1 << uint(day)
		}
	}
	return mask
}

// decodeWeekdays unpacks a bitmask into ascending weekdays.
func decodeWeekdays(mask int64) []int {
	var weekdays []int
	for day := 0; day <= 6; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}
