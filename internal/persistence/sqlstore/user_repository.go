package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a user repository on store.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

var _ persistence.UserRepository = (*UserRepository)(nil)

type userRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	DisplayName    string         `db:"display_name"`
	Course         string         `db:"course"`
	PasswordHash   string         `db:"password_hash"`
	IsAdmin        bool           `db:"is_admin"`
	Disabled       bool           `db:"disabled"`
	FailedAttempts int            `db:"failed_attempts"`
	LastFailedAt   sql.NullString `db:"last_failed_at"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

const userColumns = `id, email, display_name, course, password_hash, is_admin, disabled, failed_attempts, last_failed_at, created_at, updated_at`

func toUserRow(user persistence.User) userRow {
	return userRow{
		ID:             user.ID,
		Email:          strings.ToLower(strings.TrimSpace(user.Email)),
		DisplayName:    user.DisplayName,
		Course:         user.Course,
		PasswordHash:   user.PasswordHash,
		IsAdmin:        user.IsAdmin,
		Disabled:       user.Disabled,
		FailedAttempts: user.FailedAttempts,
		LastFailedAt:   formatNullTimestamp(user.LastFailedAt),
		CreatedAt:      formatTimestamp(user.CreatedAt),
		UpdatedAt:      formatTimestamp(user.UpdatedAt),
	}
}

func (r userRow) model() (persistence.User, error) {
	user := persistence.User{
		ID:             r.ID,
		Email:          r.Email,
		DisplayName:    r.DisplayName,
		Course:         r.Course,
		PasswordHash:   r.PasswordHash,
		IsAdmin:        r.IsAdmin,
		Disabled:       r.Disabled,
		FailedAttempts: r.FailedAttempts,
	}
	var err error
	if user.LastFailedAt, err = parseNullTimestamp("last_failed_at", r.LastFailedAt); err != nil {
		return persistence.User{}, err
	}
	if user.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// CreateUser stores a new user. Emails are stored lower-cased.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.store.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (:id, :email, :display_name, :course, :password_hash, :is_admin, :disabled, :failed_attempts, :last_failed_at, :created_at, :updated_at)`,
		toUserRow(user))
	return r.store.mapper.MapError(err)
}

// UpdateUser replaces the mutable fields of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := r.store.db.NamedExecContext(ctx,
		`UPDATE users SET email = :email, display_name = :display_name, course = :course, password_hash = :password_hash,
			is_admin = :is_admin, disabled = :disabled, updated_at = :updated_at WHERE id = :id`,
		toUserRow(user))
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var row userRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return persistence.User{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	var row userRow
	err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`),
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return persistence.User{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListUsers returns all users ordered by creation time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := r.store.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.model()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user. Users referenced by rules or reservations cannot be removed.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// RecordLoginFailure increments the failed attempt counter, optionally disabling the account.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, at time.Time, disable bool) error {
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(
		`UPDATE users SET failed_attempts = failed_attempts + 1, last_failed_at = ?, disabled = (disabled OR ?) WHERE id = ?`),
		formatTimestamp(at), disable, id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// ResetLoginFailures clears the failed attempt counter after a successful login.
func (r *UserRepository) ResetLoginFailures(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, r.store.db.Rebind(
		`UPDATE users SET failed_attempts = 0, last_failed_at = NULL WHERE id = ?`), id)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return rowsAffected(result)
}
