package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

const (
	// ResetTokenTTL is how long an emailed reset link stays usable.
	ResetTokenTTL = 10 * time.Minute

	msgIncorrectCredentials = "Incorrect email or password"
	msgInvalidSession       = "Invalid or expired session. Please log in again."
	msgResetInvalid         = "Token is invalid or has expired"
	msgWrongCurrentPassword = "Your current password is wrong"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserStore persists credential records. Every lookup excludes inactive
// users; implementations return ErrUserNotFound for misses.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, hashed string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	// ConsumeResetToken atomically swaps the password for a still-valid reset
	// token and clears it, so a token can succeed at most once.
	ConsumeResetToken(ctx context.Context, hashed string, now time.Time, passwordHash string) (*models.User, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (*models.User, error)
}

type TokenSigner interface {
	Sign(userID string, issuedAt time.Time) (string, error)
	Verify(token string) (*TokenClaims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) (bool, error)
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event) error
}

// Session is a signed token plus the record it was issued for.
type Session struct {
	Token string
	User  *models.User
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Photo           string `json:"photo"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// AuthService owns credential verification, session issuance and the
// password-reset lifecycle.
type AuthService struct {
	users     UserStore
	tokens    TokenSigner
	hasher    PasswordHasher
	mailer    Mailer
	audit     AuditRecorder
	log       *zap.Logger
	now       func() time.Time
	publicURL string
}

type AuthOption func(*AuthService)

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithAudit(rec AuditRecorder) AuthOption {
	return func(s *AuthService) {
		if rec != nil {
			s.audit = rec
		}
	}
}

func WithLogger(log *zap.Logger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

// WithPublicURL sets the base of emailed reset links.
func WithPublicURL(u string) AuthOption {
	return func(s *AuthService) { s.publicURL = strings.TrimRight(u, "/") }
}

func NewAuthService(users UserStore, tokens TokenSigner, hasher PasswordHasher, mailer Mailer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    mailer,
		audit:     nopAudit{},
		log:       zap.NewNop(),
		now:       time.Now,
		publicURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup hashes the password, persists a user-role record and issues a session.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Please tell us your name!")
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := utils.ValidateNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Unexpected("could not hash password", err)
	}

	now := s.now().UTC()
	u := &models.User{
		Name:      name,
		Email:     utils.NormalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Photo:     strings.TrimSpace(in.Photo),
		Role:      models.RoleUser,
		Password:  hash,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.record(ctx, audit.ActionSignup, nil, u.Email, audit.OutcomeFailure, "duplicate email")
			return nil, apperr.Conflict("An account with this email already exists")
		}
		return nil, apperr.Unexpected("could not create user", err)
	}

	s.record(ctx, audit.ActionSignup, u, u.Email, audit.OutcomeSuccess, "")
	return s.issue(u)
}

// Login returns the same AuthError for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation("Please provide email and password!")
	}
	email = utils.NormalizeEmail(email)

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Unexpected("could not load user", err)
	}
	if u == nil {
		s.record(ctx, audit.ActionLogin, nil, email, audit.OutcomeFailure, msgIncorrectCredentials)
		return nil, apperr.Auth(msgIncorrectCredentials)
	}

	ok, err := s.hasher.Compare(password, u.Password)
	if err != nil {
		s.log.Warn("unreadable password hash", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	if !ok {
		s.record(ctx, audit.ActionLogin, u, email, audit.OutcomeFailure, msgIncorrectCredentials)
		return nil, apperr.Auth(msgIncorrectCredentials)
	}

	s.record(ctx, audit.ActionLogin, u, email, audit.OutcomeSuccess, "")
	return s.issue(u)
}

// VerifySession resolves a bearer token to its active user. A token issued
// before the user's last password change is rejected.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Auth(msgInvalidSession)
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperr.Auth(msgInvalidSession)
	}

	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Auth(msgInvalidSession)
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load user", err)
	}
	if u.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, apperr.Auth(msgInvalidSession)
	}
	return u, nil
}

// RestrictTo fails with ForbiddenError unless u's role is allowed.
func RestrictTo(u *models.User, allowed models.Allowlist) error {
	if u == nil || !allowed.Permits(u.Role) {
		return apperr.Forbidden("You do not have permission to perform this action")
	}
	return nil
}

// RequestPasswordReset stores the hash of a fresh token and emails the raw
// token. If the email cannot be sent the stored token is cleared again.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperr.Validation("Please provide your email")
	}
	email = utils.NormalizeEmail(email)

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("There is no user with that email address")
	}
	if err != nil {
		return apperr.Unexpected("could not load user", err)
	}

	raw, hashed, err := utils.NewResetToken()
	if err != nil {
		return apperr.Unexpected("could not generate reset token", err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, hashed, s.now().UTC().Add(ResetTokenTTL)); err != nil {
		return apperr.Unexpected("could not store reset token", err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", s.publicURL, raw)
	msg := Message{
		To:      u.Email,
		Subject: "Your password reset token (valid for 10 min)",
		Text: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and "+
			"passwordConfirm to: %s\nIf you didn't forget your password, please ignore this email!", resetURL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if clearErr := s.users.ClearResetToken(ctx, u.ID); clearErr != nil {
			s.log.Error("failed to roll back reset token", zap.String("user_id", u.ID.Hex()), zap.Error(clearErr))
		}
		s.record(ctx, audit.ActionResetRequested, u, u.Email, audit.OutcomeFailure, "email not sent")
		return apperr.Unexpected("There was an error sending the email. Try again later!", err)
	}

	s.record(ctx, audit.ActionResetRequested, u, u.Email, audit.OutcomeSuccess, "")
	return nil
}

// ResetPassword redeems a raw reset token once, before it expires.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password, confirm string) (*Session, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperr.Auth(msgResetInvalid)
	}
	hashed := utils.HashResetToken(rawToken)
	now := s.now().UTC()

	if _, err := s.users.FindByResetToken(ctx, hashed, now); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Auth(msgResetInvalid)
		}
		return nil, apperr.Unexpected("could not load user", err)
	}
	if err := utils.ValidateNewPassword(password, confirm); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Unexpected("could not hash password", err)
	}
	u, err := s.users.ConsumeResetToken(ctx, hashed, now, hash)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Auth(msgResetInvalid)
	}
	if err != nil {
		return nil, apperr.Unexpected("could not reset password", err)
	}

	s.record(ctx, audit.ActionReset, u, u.Email, audit.OutcomeSuccess, "")
	s.notifyPasswordChanged(ctx, u)
	return s.issueAt(u, now)
}

// ChangePassword re-checks the current password before replacing it.
// Every token issued before the change stops verifying.
func (s *AuthService) ChangePassword(ctx context.Context, userID primitive.ObjectID, current, password, confirm string) (*Session, error) {
	if current == "" {
		return nil, apperr.Validation("Please provide your current password")
	}

	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Auth(msgInvalidSession)
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load user", err)
	}

	ok, err := s.hasher.Compare(current, u.Password)
	if err != nil {
		s.log.Warn("unreadable password hash", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	if !ok {
		s.record(ctx, audit.ActionPasswordChange, u, u.Email, audit.OutcomeFailure, msgWrongCurrentPassword)
		return nil, apperr.Auth(msgWrongCurrentPassword)
	}
	if err := utils.ValidateNewPassword(password, confirm); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Unexpected("could not hash password", err)
	}
	now := s.now().UTC()
	updated, err := s.users.SetPassword(ctx, u.ID, hash, now)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Auth(msgInvalidSession)
	}
	if err != nil {
		return nil, apperr.Unexpected("could not update password", err)
	}

	s.record(ctx, audit.ActionPasswordChange, updated, updated.Email, audit.OutcomeSuccess, "")
	s.notifyPasswordChanged(ctx, updated)
	return s.issueAt(updated, now)
}

func (s *AuthService) issue(u *models.User) (*Session, error) {
	return s.issueAt(u, s.now().UTC())
}

func (s *AuthService) issueAt(u *models.User, at time.Time) (*Session, error) {
	token, err := s.tokens.Sign(u.ID.Hex(), at)
	if err != nil {
		return nil, apperr.Unexpected("could not sign token", err)
	}
	return &Session{Token: token, User: u}, nil
}

// notifyPasswordChanged is best-effort: a failed notice is logged only.
func (s *AuthService) notifyPasswordChanged(ctx context.Context, u *models.User) {
	err := s.mailer.Send(ctx, Message{
		To:      u.Email,
		Subject: "Your password was changed",
		Text:    "The password for your account was just changed. If this wasn't you, reset it immediately.",
	})
	if err != nil {
		s.log.Warn("password change notice not sent", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
}

func (s *AuthService) record(ctx context.Context, action string, u *models.User, email, outcome, detail string) {
	e := audit.Event{Action: action, Email: email, Outcome: outcome, Detail: detail}
	if u != nil {
		e.UserID = u.ID.Hex()
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Warn("audit event dropped", zap.String("action", action), zap.Error(err))
	}
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, audit.Event) error { return nil }
