package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

var (
	// ErrInvalidCredentials is returned when the email or password does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the account was disabled by an
	// administrator or after too many failed logins.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrTokenInvalid is returned for malformed, expired or mismatched tokens.
	ErrTokenInvalid = errors.New("application: token invalid")
)

// DefaultMaxFailedAttempts is the number of consecutive failed logins that disables an account.
const DefaultMaxFailedAttempts = 5

// CredentialStore exposes user credential operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	RecordLoginFailure(ctx context.Context, userID string, at time.Time, disable bool) error
	ResetLoginFailures(ctx context.Context, userID string) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthenticateParams carries login input.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult is the authenticated user with their tokens.
type AuthenticateResult struct {
	User   User
	Tokens TokenPair
}

// AuthService coordinates login, token refresh and token validation.
type AuthService struct {
	credentials    CredentialStore
	tokens         *TokenManager
	verifyPassword PasswordVerifier
	now            func() time.Time
	maxFailures    int
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens *TokenManager, verify PasswordVerifier, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, verify, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens *TokenManager, verify PasswordVerifier, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		verifyPassword: verify,
		now:            now,
		maxFailures:    DefaultMaxFailedAttempts,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a token pair. Each failed
// password counts against the account, which is disabled on reaching the limit.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate",
		"email", email,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return
	}

	if creds.User.Disabled {
		err = ErrAccountDisabled
		return
	}

	if verifyErr := s.verifyPassword(creds.PasswordHash, password); verifyErr != nil {
		disable := creds.FailedAttempts+1 >= s.maxFailures
		if recordErr := s.credentials.RecordLoginFailure(ctx, creds.User.ID, s.now(), disable); recordErr != nil {
			logger.WarnContext(ctx, "failed to record login failure", "user_id", creds.User.ID, "error", recordErr)
		}
		if disable {
			logger.WarnContext(ctx, "account disabled after failed logins", "user_id", creds.User.ID)
		}
		err = ErrInvalidCredentials
		return
	}

	if creds.FailedAttempts > 0 {
		if err = s.credentials.ResetLoginFailures(ctx, creds.User.ID); err != nil {
			return
		}
	}

	var tokens TokenPair
	tokens, err = s.tokens.Issue(creds.User)
	if err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Tokens: tokens}
	return
}

// Refresh exchanges a refresh token for a new token pair. The user is
// reloaded so disabled accounts and privilege changes take effect.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	token := strings.TrimSpace(refreshToken)
	logger := s.loggerWith(ctx, "Refresh",
		"token_provided", token != "",
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "token refreshed")
	}()

	if token == "" {
		err = ErrTokenInvalid
		return
	}

	claims, err := s.tokens.Parse(token, TokenKindRefresh)
	if err != nil {
		return
	}

	user, err := s.credentials.GetUser(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			err = ErrTokenInvalid
		}
		return
	}
	if user.Disabled {
		err = ErrAccountDisabled
		return
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return
	}
	result = AuthenticateResult{User: user, Tokens: tokens}
	return
}

// ValidateToken verifies an access token and returns the principal it carries.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	claims, err := s.tokens.Parse(trimmed, TokenKindAccess)
	if err != nil {
		s.loggerWith(ctx, "ValidateToken").DebugContext(ctx, "access token rejected", "error", err)
		return
	}

	principal = Principal{UserID: claims.Subject, IsAdmin: claims.IsAdmin, Course: claims.Course}
	return
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
