package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTSignerRoundTrip(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 250*int(time.Millisecond), time.UTC))
	s := NewJWTSigner("test-secret", time.Hour, clock.Now)

	token, err := s.Sign("64b000000000000000000001", clock.Now())
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "64b000000000000000000001", claims.UserID)
	assert.Equal(t, clock.Now().UnixMilli(), claims.IssuedAtTime().UnixMilli())
}

func TestJWTSignerRejects(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s := NewJWTSigner("test-secret", time.Hour, clock.Now)

	good, err := s.Sign("u1", clock.Now())
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewJWTSigner("test-secret", time.Hour, func() time.Time { return clock.Now().Add(2 * time.Hour) })
		_, err := later.Verify(good)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTSigner("other-secret", time.Hour, clock.Now)
		_, err := other.Verify(good)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := s.Verify("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour))},
			UserID:           "u1",
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{UserID: "u1"})
		raw, err := tok.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = s.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
