package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "typ" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

const tokenIssuer = "reservas"

// TokenClaims is the payload of issued tokens.
type TokenClaims struct {
	Kind    string `json:"typ"`
	IsAdmin bool   `json:"adm"`
	Course  string `json:"course,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair holds a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager constructs a token manager. Non-positive TTLs fall back to
// 30 minutes and 7 days.
func NewTokenManager(secret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}
}

// Issue signs an access and a refresh token for user.
func (m *TokenManager) Issue(user User) (TokenPair, error) {
	if m == nil || len(m.secret) == 0 {
		return TokenPair{}, fmt.Errorf("token manager not configured")
	}
	now := m.now()
	pair := TokenPair{
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	var err error
	pair.AccessToken, err = m.sign(user, TokenKindAccess, now, pair.AccessExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}
	pair.RefreshToken, err = m.sign(user, TokenKindRefresh, now, pair.RefreshExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (m *TokenManager) sign(user User, kind string, issuedAt, expiresAt time.Time) (string, error) {
	claims := TokenClaims{
		Kind:    kind,
		IsAdmin: user.IsAdmin,
		Course:  user.Course,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Parse verifies raw and checks that it is a token of the expected kind.
func (m *TokenManager) Parse(raw, kind string) (TokenClaims, error) {
	if m == nil || len(m.secret) == 0 {
		return TokenClaims{}, fmt.Errorf("token manager not configured")
	}
	var claims TokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		}
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Kind != kind {
		return TokenClaims{}, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, kind)
	}
	if claims.Subject == "" {
		return TokenClaims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
