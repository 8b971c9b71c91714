package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

// ProfileStore is the non-credential side of the user store.
type ProfileStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, q *query.Query) ([]models.User, error)
}

// profileFields are the only keys updateMe accepts.
var profileFields = []string{"name", "email"}

type UserService struct {
	store ProfileStore
	audit AuditRecorder
	log   *zap.Logger
}

// NewUserService accepts a nil recorder and logger.
func NewUserService(store ProfileStore, rec AuditRecorder, log *zap.Logger) *UserService {
	if rec == nil {
		rec = nopAudit{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{store: store, audit: rec, log: log}
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("No user found with that ID")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load user", err)
	}
	return u, nil
}

// UpdateMe applies name/email changes. Password fields are refused; they
// go through AuthService.ChangePassword.
func (s *UserService) UpdateMe(ctx context.Context, id primitive.ObjectID, body map[string]interface{}) (*models.User, error) {
	for _, k := range []string{"password", "passwordConfirm"} {
		if _, ok := body[k]; ok {
			return nil, apperr.Validation("This route is not for password updates. Please use /updateMyPassword.")
		}
	}

	fields := bson.M{}
	for _, k := range profileFields {
		raw, ok := body[k]
		if !ok {
			continue
		}
		v, ok := raw.(string)
		if !ok {
			return nil, apperr.Validation("Invalid value for " + k)
		}
		fields[k] = strings.TrimSpace(v)
	}
	if name, ok := fields["name"]; ok && name == "" {
		return nil, apperr.Validation("Please tell us your name!")
	}
	if email, ok := fields["email"].(string); ok {
		if err := utils.ValidateEmail(email); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		fields["email"] = utils.NormalizeEmail(email)
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}

	u, err := s.store.UpdateProfile(ctx, id, fields)
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return nil, apperr.Conflict("An account with this email already exists")
	case errors.Is(err, ErrUserNotFound):
		return nil, apperr.NotFound("No user found with that ID")
	case err != nil:
		return nil, apperr.Unexpected("could not update user", err)
	}
	return u, nil
}

// DeleteMe soft-deletes the account.
func (s *UserService) DeleteMe(ctx context.Context, id primitive.ObjectID) error {
	err := s.store.Deactivate(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("No user found with that ID")
	}
	if err != nil {
		return apperr.Unexpected("could not deactivate user", err)
	}
	if err := s.audit.Record(ctx, audit.Event{Action: audit.ActionDeactivate, UserID: id.Hex(), Outcome: audit.OutcomeSuccess}); err != nil {
		s.log.Warn("audit event dropped", zap.String("action", audit.ActionDeactivate), zap.Error(err))
	}
	return nil
}

// List returns active users matching the query string.
func (s *UserService) List(ctx context.Context, params url.Values) ([]models.User, error) {
	users, err := s.store.List(ctx, UserQuery(params))
	if err != nil {
		return nil, apperr.Unexpected("could not list users", err)
	}
	return users, nil
}
