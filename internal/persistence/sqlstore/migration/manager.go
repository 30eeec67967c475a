package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL,
    checksum TEXT NOT NULL,
    execution_time_ms INTEGER NOT NULL
)`

// Manager applies pending migrations from a source filesystem.
type Manager struct {
	db     *sqlx.DB
	source fs.FS
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a Manager. A nil source uses the embedded migrations.
func NewManager(db *sqlx.DB, source fs.FS, logger *slog.Logger) *Manager {
	if source == nil {
		source = Embedded()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, source: source, logger: logger.With("component", "migration"), now: time.Now}
}

type appliedRow struct {
	Version         string `db:"version"`
	AppliedAt       string `db:"applied_at"`
	Checksum        string `db:"checksum"`
	ExecutionTimeMs int64  `db:"execution_time_ms"`
}

// Applied returns the migrations recorded in schema_migrations ordered by version.
func (m *Manager) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, newMigrationError("", "", "create schema_migrations table", err)
	}

	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version`); err != nil {
		return nil, newMigrationError("", "", "list applied migrations", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		at, err := time.Parse(time.RFC3339, row.AppliedAt)
		if err != nil {
			return nil, newMigrationError(row.Version, "", "parse applied_at", err)
		}
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			AppliedAt:     at,
			ExecutionTime: time.Duration(row.ExecutionTimeMs) * time.Millisecond,
			Checksum:      row.Checksum,
		})
	}
	return applied, nil
}

// Status reports the applied and pending migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	all, err := Scan(m.source)
	if err != nil {
		return Status{}, err
	}
	pending, err := pendingMigrations(all, applied)
	if err != nil {
		return Status{}, err
	}

	status := Status{AppliedMigrations: applied, PendingMigrations: pending}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// Run applies every pending migration, each in its own transaction together
// with its schema_migrations record.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	logger := m.logger.With("current_version", status.CurrentVersion, "pending", len(status.PendingMigrations))
	if len(status.PendingMigrations) == 0 {
		logger.DebugContext(ctx, "schema up to date")
		return nil
	}
	logger.InfoContext(ctx, "applying migrations")

	for _, migration := range status.PendingMigrations {
		started := m.now()
		if err := m.apply(ctx, migration, started); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", m.now().Sub(started),
		)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context, migration Migration, started time.Time) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return newMigrationError(migration.Version, migration.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = newMigrationError(migration.Version, migration.FilePath,
				fmt.Sprintf("execute statement %d", i+1), fmt.Errorf("%w: %v", ErrMigrationFailed, execErr))
			return err
		}
	}

	elapsed := m.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`),
		migration.Version, m.now().UTC().Format(time.RFC3339), migration.Checksum, elapsed.Milliseconds(),
	); execErr != nil {
		err = newMigrationError(migration.Version, migration.FilePath, "record migration", execErr)
		return err
	}

	if err = tx.Commit(); err != nil {
		return newMigrationError(migration.Version, migration.FilePath, "commit transaction", err)
	}
	return nil
}

func pendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Version] = a.Checksum
	}

	var pending []Migration
	for _, migration := range all {
		sum, ok := checksums[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if sum != migration.Checksum {
			return nil, newMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return pending, nil
}
