package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

// SessionVerifier resolves a bearer token to the current user.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*models.User, error)
}

type userKey struct{}

// WithUser stores u on ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// CurrentUser returns the user set by Protect, or nil.
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// Protect requires a valid "Authorization: Bearer <token>" header.
func Protect(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apperr.Write(w, apperr.Auth("You are not logged in! Please log in to get access."))
				return
			}
			u, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RestrictTo admits only users whose role is in allowed. It must run after Protect.
func RestrictTo(allowed models.Allowlist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := services.RestrictTo(CurrentUser(r.Context()), allowed); err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
