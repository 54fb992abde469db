package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artpar/recordbase/pkg/apierror"
	"github.com/artpar/recordbase/ports"
)

// DefaultTokenLifetime is how long a session token stays valid when the
// configuration does not say otherwise.
const DefaultTokenLifetime = 60 * 24 * time.Hour

// Claims is the session token payload: the user id, the group list at
// issue time, and the issue timestamp in epoch milliseconds.
type Claims struct {
	UserID    string   `json:"id"`
	Groups    []string `json:"groups"`
	Timestamp int64    `json:"timestamp"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens (HMAC-SHA256).
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	clock     ports.Clock
}

// NewTokenService builds a token service. A non-positive expiresIn falls
// back to DefaultTokenLifetime.
func NewTokenService(secret string, expiresIn time.Duration, clock ports.Clock) *TokenService {
	if expiresIn <= 0 {
		expiresIn = DefaultTokenLifetime
	}
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		clock:     clock,
	}
}

// Issue signs a token for the user.
func (t *TokenService) Issue(userID string, groups []string) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		UserID:    userID,
		Groups:    groups,
		Timestamp: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the token and returns its claims. Expiry maps to the
// session-expired error; every other failure collapses to a generic 401.
func (t *TokenService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tk *jwt.Token) (any, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tk.Method.Alg())
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierror.ErrSessionExpired
		}
		return nil, apierror.ErrUnauthorized
	}
	if !parsed.Valid {
		return nil, apierror.ErrUnauthorized
	}
	return claims, nil
}
