package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

// AdminStore is the slice of the user store operator tooling needs.
type AdminStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (*models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
}

// AdminAccount describes the account EnsureAdmin creates or refreshes.
type AdminAccount struct {
	Name     string
	Email    string
	Password string
}

// EnsureAdmin creates an admin account, or promotes and re-passwords an
// existing active account with the same email. Signup can never grant the
// admin role, so this is the only way to get one. Returns true when a new
// record was created.
func EnsureAdmin(ctx context.Context, store AdminStore, hasher PasswordHasher, acct AdminAccount, now time.Time) (bool, error) {
	if err := utils.ValidateEmail(acct.Email); err != nil {
		return false, err
	}
	if err := utils.ValidateNewPassword(acct.Password, acct.Password); err != nil {
		return false, err
	}
	email := utils.NormalizeEmail(acct.Email)
	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = "Administrator"
	}

	hash, err := hasher.Hash(acct.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	existing, err := store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		now = now.UTC()
		u := &models.User{
			Name:      name,
			Email:     email,
			Role:      models.RoleAdmin,
			Password:  hash,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Create(ctx, u); err != nil {
			return false, fmt.Errorf("create admin: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("look up %s: %w", email, err)
	}

	if existing.Role != models.RoleAdmin {
		if err := store.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return false, fmt.Errorf("promote admin: %w", err)
		}
	}
	// A new password also revokes every session issued before now.
	if _, err := store.SetPassword(ctx, existing.ID, hash, now.UTC()); err != nil {
		return false, fmt.Errorf("set admin password: %w", err)
	}
	return false, nil
}

// SetUserRole changes the role of the active account with email. The role
// name is validated before the store is touched.
func SetUserRole(ctx context.Context, store AdminStore, email, role string) (*models.User, error) {
	r, err := models.ParseRole(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	email = utils.NormalizeEmail(email)
	u, err := store.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}
	if u.Role == r {
		return u, nil
	}
	if err := store.SetRole(ctx, u.ID, r); err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	u.Role = r
	return u, nil
}
