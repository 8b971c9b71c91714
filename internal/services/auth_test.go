package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

var resetLink = regexp.MustCompile(`/api/v1/users/resetPassword/([0-9a-f]{64})`)

type authFixture struct {
	svc    *AuthService
	store  *memUserStore
	mailer *fakeMailer
	audit  *recordingAudit
	clock  *fakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store:  newMemUserStore(),
		mailer: &fakeMailer{},
		audit:  &recordingAudit{},
		clock:  newFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)),
	}
	f.svc = NewAuthService(
		f.store,
		NewJWTSigner("test-secret", 90*24*time.Hour, f.clock.Now),
		utils.NewBcryptHasher(bcrypt.MinCost),
		f.mailer,
		WithClock(f.clock.Now),
		WithAudit(f.audit),
		WithPublicURL("https://shop.example.com/"),
	)
	return f
}

func (f *authFixture) signup(t *testing.T, email, password string) *Session {
	t.Helper()
	sess, err := f.svc.Signup(context.Background(), SignupInput{
		Name:            "Ada",
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	})
	require.NoError(t, err)
	return sess
}

func (f *authFixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), email))
	m := resetLink.FindStringSubmatch(f.mailer.last().Text)
	require.Len(t, m, 2, "reset email should carry a link")
	return m[1]
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.From(err).Kind, "error: %v", err)
}

func TestExampleScenario(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	sess := f.signup(t, "a@x.com", "abcd1234")
	require.NotEmpty(t, sess.Token)
	raw, err := json.Marshal(sess.User)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), sess.User.Password)

	f.clock.Advance(time.Second)
	login, err := f.svc.Login(ctx, "a@x.com", "abcd1234")
	require.NoError(t, err)
	u, err := f.svc.VerifySession(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)

	f.clock.Advance(time.Second)
	changed, err := f.svc.ChangePassword(ctx, u.ID, "abcd1234", "newpass99", "newpass99")
	require.NoError(t, err)

	_, err = f.svc.VerifySession(ctx, login.Token)
	assertKind(t, err, apperr.KindAuth)
	_, err = f.svc.VerifySession(ctx, sess.Token)
	assertKind(t, err, apperr.KindAuth)

	_, err = f.svc.VerifySession(ctx, changed.Token)
	assert.NoError(t, err)

	_, err = f.svc.Login(ctx, "a@x.com", "abcd1234")
	assertKind(t, err, apperr.KindAuth)
	_, err = f.svc.Login(ctx, "a@x.com", "newpass99")
	assert.NoError(t, err)
}

func TestSignup(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	sess := f.signup(t, "  Mixed@Case.COM ", "abcd1234")
	assert.Equal(t, "mixed@case.com", sess.User.Email)
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.True(t, sess.User.Active)
	assert.Nil(t, sess.User.PasswordChangedAt)
	assert.NotEqual(t, "abcd1234", f.store.raw(sess.User.ID).Password)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.svc.Signup(ctx, SignupInput{Name: "B", Email: "mixed@case.com", Password: "abcd1234", PasswordConfirm: "abcd1234"})
		assertKind(t, err, apperr.KindConflict)
	})

	invalid := map[string]SignupInput{
		"missing name":     {Email: "b@x.com", Password: "abcd1234", PasswordConfirm: "abcd1234"},
		"missing email":    {Name: "B", Password: "abcd1234", PasswordConfirm: "abcd1234"},
		"bad email":        {Name: "B", Email: "nope", Password: "abcd1234", PasswordConfirm: "abcd1234"},
		"short password":   {Name: "B", Email: "b@x.com", Password: "abc", PasswordConfirm: "abc"},
		"missing confirm":  {Name: "B", Email: "b@x.com", Password: "abcd1234"},
		"confirm mismatch": {Name: "B", Email: "b@x.com", Password: "abcd1234", PasswordConfirm: "abcd12345"},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, in)
			assertKind(t, err, apperr.KindValidation)
		})
	}
}

func TestLoginDoesNotRevealWhichCredentialIsWrong(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "abcd1234")

	_, wrongPassword := f.svc.Login(ctx, "a@x.com", "wrong-password")
	_, unknownEmail := f.svc.Login(ctx, "nobody@x.com", "abcd1234")

	var e1, e2 *apperr.Error
	require.True(t, errors.As(wrongPassword, &e1))
	require.True(t, errors.As(unknownEmail, &e2))
	assert.Equal(t, e1.Message, e2.Message)
	assert.Equal(t, e1.HTTPStatus(), e2.HTTPStatus())
	assert.Equal(t, apperr.KindAuth, e1.Kind)

	_, err := f.svc.Login(ctx, "", "abcd1234")
	assertKind(t, err, apperr.KindValidation)
	_, err = f.svc.Login(ctx, "a@x.com", "")
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.Login(ctx, "A@X.COM", "abcd1234")
	assert.NoError(t, err)
}

func TestVerifySessionFailuresAreUniform(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")

	other := NewJWTSigner("other-secret", time.Hour, f.clock.Now)
	forged, err := other.Sign(sess.User.ID.Hex(), f.clock.Now())
	require.NoError(t, err)

	signer := NewJWTSigner("test-secret", time.Hour, f.clock.Now)
	ghost, err := signer.Sign("64b000000000000000000001", f.clock.Now())
	require.NoError(t, err)
	notAnID, err := signer.Sign("not-an-object-id", f.clock.Now())
	require.NoError(t, err)

	var messages []string
	for name, token := range map[string]string{
		"garbage":      "garbage",
		"forged":       forged,
		"unknown user": ghost,
		"bad user id":  notAnID,
	} {
		_, err := f.svc.VerifySession(ctx, token)
		var e *apperr.Error
		require.Truef(t, errors.As(err, &e), "%s: %v", name, err)
		assert.Equalf(t, apperr.KindAuth, e.Kind, name)
		messages = append(messages, e.Message)
	}
	for _, m := range messages {
		assert.Equal(t, messages[0], m)
	}

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(91 * 24 * time.Hour)
		_, err := f.svc.VerifySession(ctx, sess.Token)
		assertKind(t, err, apperr.KindAuth)
	})
}

func TestDeactivatedUserIsInvisible(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")

	require.NoError(t, NewUserService(f.store, f.audit, nil).DeleteMe(ctx, sess.User.ID))

	_, err := f.svc.VerifySession(ctx, sess.Token)
	assertKind(t, err, apperr.KindAuth)
	_, err = f.svc.Login(ctx, "a@x.com", "abcd1234")
	assertKind(t, err, apperr.KindAuth)
	err = f.svc.RequestPasswordReset(ctx, "a@x.com")
	assertKind(t, err, apperr.KindNotFound)
}

func TestPasswordChangeInvalidatesEarlierTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")

	// T1 < T2 by a single millisecond is enough.
	f.clock.Advance(time.Millisecond)
	_, err := f.svc.ChangePassword(ctx, sess.User.ID, "abcd1234", "newpass99", "newpass99")
	require.NoError(t, err)

	_, err = f.svc.VerifySession(ctx, sess.Token)
	assertKind(t, err, apperr.KindAuth)
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")

	_, err := f.svc.ChangePassword(ctx, sess.User.ID, "not-it-at-all", "newpass99", "newpass99")
	assertKind(t, err, apperr.KindAuth)
	assert.Contains(t, err.Error(), "current password is wrong")

	_, err = f.svc.ChangePassword(ctx, sess.User.ID, "abcd1234", "newpass99", "different9")
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.VerifySession(ctx, sess.Token)
	assert.NoError(t, err, "failed changes must not invalidate sessions")
}

func TestChangePasswordNoticeIsBestEffort(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")
	f.mailer.fail = func(Message) error { return errors.New("smtp down") }

	f.clock.Advance(time.Second)
	_, err := f.svc.ChangePassword(ctx, sess.User.ID, "abcd1234", "newpass99", "newpass99")
	assert.NoError(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess := f.signup(t, "a@x.com", "abcd1234")

	raw := f.requestReset(t, "A@x.com")
	assert.Contains(t, f.mailer.last().Text, "https://shop.example.com/api/v1/users/resetPassword/"+raw)
	assert.Equal(t, "a@x.com", f.mailer.last().To)

	stored := f.store.raw(sess.User.ID)
	assert.Equal(t, utils.HashResetToken(raw), stored.PasswordResetToken)
	assert.NotEqual(t, raw, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.True(t, f.clock.Now().Add(ResetTokenTTL).Equal(*stored.PasswordResetExpires))

	f.clock.Advance(time.Minute)
	reset, err := f.svc.ResetPassword(ctx, raw, "newpass99", "newpass99")
	require.NoError(t, err)
	_, err = f.svc.VerifySession(ctx, reset.Token)
	assert.NoError(t, err)

	stored = f.store.raw(sess.User.ID)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	require.NotNil(t, stored.PasswordChangedAt)

	_, err = f.svc.VerifySession(ctx, sess.Token)
	assertKind(t, err, apperr.KindAuth)

	t.Run("single use", func(t *testing.T) {
		_, err := f.svc.ResetPassword(ctx, raw, "another99", "another99")
		assertKind(t, err, apperr.KindAuth)
	})

	_, err = f.svc.Login(ctx, "a@x.com", "newpass99")
	assert.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "abcd1234")
	raw := f.requestReset(t, "a@x.com")

	f.clock.Advance(ResetTokenTTL + time.Second)
	_, err := f.svc.ResetPassword(context.Background(), raw, "newpass99", "newpass99")
	assertKind(t, err, apperr.KindAuth)
}

func TestPasswordResetRejectsUnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "a@x.com", "abcd1234")
	f.requestReset(t, "a@x.com")

	_, err := f.svc.ResetPassword(context.Background(), "deadbeef", "newpass99", "newpass99")
	assertKind(t, err, apperr.KindAuth)
	_, err = f.svc.ResetPassword(context.Background(), "", "newpass99", "newpass99")
	assertKind(t, err, apperr.KindAuth)
}

func TestPasswordResetBadConfirmKeepsToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "abcd1234")
	raw := f.requestReset(t, "a@x.com")

	_, err := f.svc.ResetPassword(ctx, raw, "newpass99", "mismatch99")
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.ResetPassword(ctx, raw, "newpass99", "newpass99")
	assert.NoError(t, err)
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	err := f.svc.RequestPasswordReset(context.Background(), "nobody@x.com")
	assertKind(t, err, apperr.KindNotFound)
	assert.Empty(t, f.mailer.sent)

	err = f.svc.RequestPasswordReset(context.Background(), " ")
	assertKind(t, err, apperr.KindValidation)
}

func TestPasswordResetRollsBackWhenEmailFails(t *testing.T) {
	f := newAuthFixture(t)
	sess := f.signup(t, "a@x.com", "abcd1234")
	f.mailer.fail = func(Message) error { return errors.New("smtp down") }

	err := f.svc.RequestPasswordReset(context.Background(), "a@x.com")
	assertKind(t, err, apperr.KindUnexpected)

	stored := f.store.raw(sess.User.ID)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestRestrictTo(t *testing.T) {
	admins := models.Allow(models.RoleAdmin)

	assert.NoError(t, RestrictTo(&models.User{Role: models.RoleAdmin}, admins))
	assertKind(t, RestrictTo(&models.User{Role: models.RoleUser}, admins), apperr.KindForbidden)
	assertKind(t, RestrictTo(nil, admins), apperr.KindForbidden)
}

func TestAuthEventsAreAudited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "a@x.com", "abcd1234")
	_, _ = f.svc.Login(ctx, "a@x.com", "wrong-password")
	_, _ = f.svc.Login(ctx, "a@x.com", "abcd1234")

	assert.Equal(t, []string{
		audit.ActionSignup + ":" + audit.OutcomeSuccess,
		audit.ActionLogin + ":" + audit.OutcomeFailure,
		audit.ActionLogin + ":" + audit.OutcomeSuccess,
	}, f.audit.actions())

	f.audit.err = errors.New("postgres down")
	_, err := f.svc.Login(ctx, "a@x.com", "abcd1234")
	assert.NoError(t, err, "audit failures never fail the operation")
}
