package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a session token is rejected.
var ErrInvalidToken = errors.New("invalid session token")

// TokenClaims is the payload of a session token. IssuedAtMs carries the
// issuance instant at millisecond precision for the password-change check;
// the registered iat claim only holds whole seconds.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID     string `json:"id"`
	IssuedAtMs int64  `json:"iat_ms"`
}

// IssuedAtTime returns the most precise issuance time the token carries.
func (c *TokenClaims) IssuedAtTime() time.Time {
	if c.IssuedAtMs > 0 {
		return time.UnixMilli(c.IssuedAtMs)
	}
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// JWTSigner issues and verifies HS256 session tokens.
type JWTSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTSigner(secret string, ttl time.Duration, now func() time.Time) *JWTSigner {
	if now == nil {
		now = time.Now
	}
	return &JWTSigner{secret: []byte(secret), ttl: ttl, now: now}
}

// Sign issues a token for userID dated issuedAt.
func (s *JWTSigner) Sign(userID string, issuedAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
		UserID:     userID,
		IssuedAtMs: issuedAt.UnixMilli(),
	})
	return token.SignedString(s.secret)
}

// Verify checks signature, algorithm and expiry. Every failure is ErrInvalidToken.
func (s *JWTSigner) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
