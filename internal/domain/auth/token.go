package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, forged or mistyped tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// Tokens is a freshly issued token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type claims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. Each kind
// uses its own secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue signs a new token pair for userID.
func (t *TokenIssuer) Issue(userID string) (Tokens, error) {
	now := t.now()
	access, err := t.sign(userID, KindAccess, now, t.accessTTL, t.accessSecret)
	if err != nil {
		return Tokens{}, errors.Wrap(err, "sign access token")
	}
	refresh, err := t.sign(userID, KindRefresh, now, t.refreshTTL, t.refreshSecret)
	if err != nil {
		return Tokens{}, errors.Wrap(err, "sign refresh token")
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(t.accessTTL),
	}, nil
}

func (t *TokenIssuer) sign(userID string, kind TokenKind, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	c := claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// ParseAccess verifies an access token and returns its subject.
func (t *TokenIssuer) ParseAccess(token string) (string, error) {
	return t.parse(token, KindAccess, t.accessSecret)
}

// ParseRefresh verifies a refresh token and returns its subject.
func (t *TokenIssuer) ParseRefresh(token string) (string, error) {
	return t.parse(token, KindRefresh, t.refreshSecret)
}

func (t *TokenIssuer) parse(token string, kind TokenKind, secret []byte) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", ErrTokenInvalid
	}
	if c.Kind != kind || c.Subject == "" {
		return "", ErrTokenInvalid
	}
	return c.Subject, nil
}
