package testfixtures

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence/sqlstore"
)

// SQLiteHarness provides repositories backed by a migrated SQLite database in
// a temporary directory.
type SQLiteHarness struct {
	sqlstore.Repositories
	Store *sqlstore.Store
	DSN   string

	cleanup func()
}

// Close releases the database handle. It is also registered with tb.Cleanup.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// SQLiteDSN returns a modernc DSN for path with foreign keys enforced.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// NewSQLiteHarness opens and migrates a fresh database for tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dsn := SQLiteDSN(filepath.Join(tb.TempDir(), "reservas.db"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn, logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Repositories: sqlstore.NewRepositories(store),
		Store:        store,
		DSN:          dsn,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedRoom inserts the user, a block and a room so that rules and
// reservations referencing them satisfy foreign keys.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, user UserFixture, room RoomFixture) {
	tb.Helper()
	ctx := context.Background()

	block := NewBlockFixture(func(b *BlockFixture) { b.ID = room.BlockID })
	if _, err := h.Blocks.GetBlock(ctx, block.ID); err != nil {
		if err := h.Blocks.CreateBlock(ctx, block.Persistence()); err != nil {
			tb.Fatalf("seed block: %v", err)
		}
	}
	if _, err := h.Users.GetUser(ctx, user.ID); err != nil {
		if err := h.Users.CreateUser(ctx, user.Persistence()); err != nil {
			tb.Fatalf("seed user: %v", err)
		}
	}
	if err := h.Rooms.CreateRoom(ctx, room.Persistence()); err != nil {
		tb.Fatalf("seed room: %v", err)
	}
}
