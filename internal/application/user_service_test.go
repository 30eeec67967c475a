package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

type userRepoStub struct {
	users  map[string]User
	hashes map[string]string
	err    error
}

func newUserRepoStub(users ...User) *userRepoStub {
	repo := &userRepoStub{users: map[string]User{}, hashes: map[string]string{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *userRepoStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if r.err != nil {
		return User{}, r.err
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *userRepoStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *userRepoStub) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if r.err != nil {
		return User{}, r.err
	}
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

func (r *userRepoStub) UpdateUser(ctx context.Context, user User, passwordHash *string) (User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return User{}, persistence.ErrNotFound
	}
	r.users[user.ID] = user
	if passwordHash != nil {
		r.hashes[user.ID] = *passwordHash
	}
	return user, nil
}

func (r *userRepoStub) DeleteUser(ctx context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepoStub) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func prefixHasher(password string) (string, error) { return "hashed:" + password, nil }

func strPtr(s string) *string { return &s }

var admin = Principal{UserID: "admin", IsAdmin: true}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepoStub(), prefixHasher, nil, nil)

		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: Principal{UserID: "u"}})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("validates fields", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepoStub(), prefixHasher, nil, nil)

		_, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: admin,
			Input:     UserInput{Email: "not-an-email"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.Code("email") != CodeInvalidFormat || vErr.Code("display_name") != CodeRequired || vErr.Code("password") != CodeRequired {
			t.Fatalf("unexpected field codes %v", vErr.FieldErrors)
		}

		_, err = svc.CreateUser(context.Background(), CreateUserParams{
			Principal: admin,
			Input:     UserInput{Email: "a@uni.br", DisplayName: "A", Password: strPtr("short")},
		})
		if !errors.As(err, &vErr) || vErr.Code("password") != CodeInvalidValue {
			t.Fatalf("expected short password to be rejected, got %v", err)
		}
	})

	t.Run("normalizes and hashes", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub()
		now := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
		svc := NewUserService(repo, prefixHasher, func() string { return "user-1" }, fixedNow(now))

		user, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: admin,
			Input: UserInput{
				Email:       "  Ana@UNI.br ",
				DisplayName: " Ana ",
				Course:      " Direito ",
				Password:    strPtr("correct-horse"),
			},
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID != "user-1" || user.Email != "ana@uni.br" || user.DisplayName != "Ana" || user.Course != "Direito" {
			t.Fatalf("unexpected user %+v", user)
		}
		if !user.CreatedAt.Equal(now) {
			t.Fatalf("expected injected clock, got %v", user.CreatedAt)
		}
		if repo.hashes["user-1"] != "hashed:correct-horse" {
			t.Fatalf("expected hashed password, got %q", repo.hashes["user-1"])
		}

		_, err = svc.CreateUser(context.Background(), CreateUserParams{
			Principal: admin,
			Input:     UserInput{Email: "ana@uni.br", DisplayName: "Dup", Password: strPtr("correct-horse")},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	existing := User{ID: "user-1", Email: "ana@uni.br", DisplayName: "Ana", CreatedAt: time.Unix(0, 0).UTC()}

	t.Run("keeps the password when none is given", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(existing)
		repo.hashes["user-1"] = "hashed:old"
		svc := NewUserService(repo, prefixHasher, nil, nil)

		user, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: admin,
			UserID:    "user-1",
			Input:     UserInput{Email: "ana@uni.br", DisplayName: "Ana Maria", Course: "Engenharia"},
		})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if user.DisplayName != "Ana Maria" || user.Course != "Engenharia" || !user.CreatedAt.Equal(existing.CreatedAt) {
			t.Fatalf("unexpected user %+v", user)
		}
		if repo.hashes["user-1"] != "hashed:old" {
			t.Fatalf("expected password to stay, got %q", repo.hashes["user-1"])
		}
	})

	t.Run("rehashes a new password", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(existing)
		svc := NewUserService(repo, prefixHasher, nil, nil)

		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: admin,
			UserID:    "user-1",
			Input:     UserInput{Email: "ana@uni.br", DisplayName: "Ana", Password: strPtr("new-password")},
		})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if repo.hashes["user-1"] != "hashed:new-password" {
			t.Fatalf("expected new hash, got %q", repo.hashes["user-1"])
		}
	})

	t.Run("missing users and non administrators", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepoStub(), prefixHasher, nil, nil)

		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: admin, UserID: "ghost", Input: UserInput{Email: "g@uni.br", DisplayName: "G"}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		_, err = svc.UpdateUser(context.Background(), UpdateUserParams{Principal: Principal{UserID: "user-1"}, UserID: "user-1"})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestUserService_DeleteAndList(t *testing.T) {
	t.Parallel()

	repo := newUserRepoStub(
		User{ID: "user-2", Email: "bruno@uni.br"},
		User{ID: "user-1", Email: "Ana@uni.br"},
		User{ID: "admin", Email: "admin@uni.br", IsAdmin: true},
	)
	svc := NewUserService(repo, prefixHasher, nil, nil)

	users, err := svc.ListUsers(context.Background(), admin)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 || users[0].ID != "admin" || users[1].ID != "user-1" || users[2].ID != "user-2" {
		t.Fatalf("expected users ordered by email, got %+v", users)
	}
	if _, err := svc.ListUsers(context.Background(), Principal{UserID: "user-1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.DeleteUser(context.Background(), admin, "admin"); !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected self deletion to be rejected, got %v", err)
	}
	if err := svc.DeleteUser(context.Background(), admin, "user-2"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), admin, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	repo.err = persistence.ErrForeignKeyViolation
	if err := svc.DeleteUser(context.Background(), admin, "user-1"); !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected owner of bookings to be kept, got %v", err)
	}
}

func TestUserService_GetUserFor(t *testing.T) {
	t.Parallel()

	svc := NewUserService(newUserRepoStub(User{ID: "user-1"}), prefixHasher, nil, nil)

	if _, err := svc.GetUserFor(context.Background(), Principal{}, "user-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.GetUserFor(context.Background(), Principal{UserID: "user-2"}, "user-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetUserFor(context.Background(), Principal{UserID: "user-1"}, "user-1"); err != nil {
		t.Fatalf("expected users to read themselves, got %v", err)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Parallel()

	repo := newUserRepoStub()
	svc := NewUserService(repo, prefixHasher, func() string { return "admin-1" }, nil)

	created, err := svc.EnsureAdmin(context.Background(), " Root@UNI.br ", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("expected administrator to be created, got created=%v err=%v", created, err)
	}
	if !repo.users["admin-1"].IsAdmin || repo.users["admin-1"].Email != "root@uni.br" {
		t.Fatalf("unexpected administrator %+v", repo.users["admin-1"])
	}

	created, err = svc.EnsureAdmin(context.Background(), "root@uni.br", "bootstrap-pass")
	if err != nil || created {
		t.Fatalf("expected existing administrator to be kept, got created=%v err=%v", created, err)
	}

	created, err = svc.EnsureAdmin(context.Background(), "", "x")
	if err != nil || created {
		t.Fatalf("expected empty email to be a no-op, got created=%v err=%v", created, err)
	}
}
