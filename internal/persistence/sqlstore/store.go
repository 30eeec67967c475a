// Package sqlstore implements the persistence repositories on top of sqlx.
// SQLite (modernc.org/sqlite) is the default driver; PostgreSQL is supported
// through lib/pq.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
	"github.com/joaosantosg/reserva-salas-uni/internal/persistence/sqlstore/migration"
)

const (
	// DriverSQLite selects modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverPostgres selects github.com/lib/pq.
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store owns the database handle shared by every repository.
type Store struct {
	db     *sqlx.DB
	driver string
	mapper *ErrorMapper
	logger *slog.Logger
}

// Open connects to the database identified by driver and dsn.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY between pooled handles.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &Store{db: db, driver: driver, mapper: NewErrorMapper(), logger: logger.With("component", "sqlstore", "driver", driver)}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return migration.NewManager(s.db, nil, s.logger).Run(ctx)
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction executes fn in a transaction, committing when fn returns nil
// and rolling back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", s.mapper.MapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit transaction: %w", s.mapper.MapError(err))
	}
	return nil
}

// lockRoom serialises conflict-checked writes for a room. SQLite already
// holds the database write lock for the whole transaction.
func (s *Store) lockRoom(ctx context.Context, tx *sqlx.Tx, roomID string) error {
	if s.driver != DriverPostgres {
		return nil
	}
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID)
	return s.mapper.MapError(err)
}

// ErrorMapper translates driver errors into persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates an ErrorMapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps driver-specific failures to persistence errors, keeping the
// original error in the chain.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			switch pqErr.Code {
			case "23505":
				return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
			case "23503":
				return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
			default:
				return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
			}
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

const (
	timestampLayout = time.RFC3339
	dateLayout      = time.DateOnly
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatNullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: parse %s: %w", field, err)
	}
	return t.UTC(), nil
}

func parseNullTimestamp(field string, value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(field, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: parse %s: %w", field, err)
	}
	return t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

// page applies limit/offset clauses when limit is positive.
func page(query string, limit, offset int) string {
	if limit <= 0 {
		return query
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
}

// rowsAffected returns persistence.ErrNotFound when the statement touched no rows.
func rowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// jsonColumn keeps JSON documents in TEXT columns. types.JSONText binds as
// []byte, which lib/pq would encode as bytea.
type jsonColumn struct {
	types.JSONText
}

func newJSONColumn(v any) (jsonColumn, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return jsonColumn{}, fmt.Errorf("sqlstore: encode json column: %w", err)
	}
	return jsonColumn{JSONText: types.JSONText(encoded)}, nil
}

// Value implements driver.Valuer.
func (j jsonColumn) Value() (driver.Value, error) {
	if len(j.JSONText) == 0 {
		return nil, nil
	}
	return j.JSONText.String(), nil
}
