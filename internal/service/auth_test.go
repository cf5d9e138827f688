package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/schoolhub/internal/auth"
	"github.com/campuskit/schoolhub/internal/domain/user"
	mailx "github.com/campuskit/schoolhub/internal/mail"
	"github.com/campuskit/schoolhub/internal/repo/memory"
	"github.com/campuskit/schoolhub/internal/security"
	"github.com/campuskit/schoolhub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingMailer records outgoing messages and can be told to fail.
type capturingMailer struct {
	mu     sync.Mutex
	sent   []mailx.Message
	sendFn func(ctx context.Context, msg mailx.Message) error
}

func (m *capturingMailer) Send(ctx context.Context, msg mailx.Message) error {
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	return nil
}

func (m *capturingMailer) last(t *testing.T) mailx.Message {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.sent, "expected at least one delivered message")
	return m.sent[len(m.sent)-1]
}

type authFixture struct {
	svc    *service.Auth
	store  *memory.UsersRepo
	mailer *capturingMailer
	tokens *auth.Manager
	resets *auth.ResetManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := memory.NewUsersRepo()
	mailer := &capturingMailer{}
	// bcrypt.MinCost keeps the suite fast
	hasher := security.NewHasher(4)
	tokens := auth.NewManager("test-secret-at-least-32-bytes-long", time.Hour)
	resets := auth.NewResetManager(10 * time.Minute)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &authFixture{
		svc:    service.NewAuth(store, hasher, tokens, resets, mailer, log),
		store:  store,
		mailer: mailer,
		tokens: tokens,
		resets: resets,
	}
}

func (f *authFixture) register(t *testing.T, email string) service.TokenResult {
	t.Helper()

	res, err := f.svc.Register(context.Background(), service.RegisterRequest{
		Name:     "Jane Teacher",
		Email:    email,
		Password: "sekret1",
		Role:     user.RoleTeacher,
	})
	require.NoError(t, err)

	return res
}

func TestRegisterThenLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")
	require.NotEmpty(t, res.Token)
	assert.Equal(t, user.RoleTeacher, res.User.Role)
	assert.True(t, res.User.IsActive)

	// the stored hash must never equal the plaintext
	stored, err := f.store.GetByEmail(ctx, "jane@school.test")
	require.NoError(t, err)
	assert.NotEqual(t, "sekret1", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	logged, err := f.svc.Login(ctx, "jane@school.test", "sekret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, logged.User.ID)

	claims, err := f.tokens.Validate(logged.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, user.RoleTeacher, claims.Role)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, service.RegisterRequest{
		Name:     "Jane",
		Email:    "  Jane@School.Test ",
		Password: "sekret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@school.test", res.User.Email)

	// login with differently-cased email finds the same account
	_, err = f.svc.Login(ctx, "JANE@school.test", "sekret1")
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		req       service.RegisterRequest
		wantField string
	}{
		{
			name:      "missing_name",
			req:       service.RegisterRequest{Email: "a@b.test", Password: "sekret1"},
			wantField: "name",
		},
		{
			name:      "bad_email",
			req:       service.RegisterRequest{Name: "Jane", Email: "not-an-email", Password: "sekret1"},
			wantField: "email",
		},
		{
			name:      "short_password",
			req:       service.RegisterRequest{Name: "Jane", Email: "a@b.test", Password: "abc"},
			wantField: "password",
		},
		{
			name:      "long_password",
			req:       service.RegisterRequest{Name: "Jane", Email: "a@b.test", Password: strings.Repeat("a", 80)},
			wantField: "password",
		},
		{
			name:      "unknown_role",
			req:       service.RegisterRequest{Name: "Jane", Email: "a@b.test", Password: "sekret1", Role: "janitor"},
			wantField: "role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.req)

			var ve *service.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.register(t, "jane@school.test")

	_, err := f.svc.Register(context.Background(), service.RegisterRequest{
		Name:     "Impostor",
		Email:    "jane@school.test",
		Password: "sekret2",
	})

	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

// Unknown account and wrong password must yield the very same error value.
func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "jane@school.test")

	_, unknownErr := f.svc.Login(ctx, "ghost@school.test", "sekret1")
	_, wrongPassErr := f.svc.Login(ctx, "jane@school.test", "wrong-password")

	require.ErrorIs(t, unknownErr, service.ErrInvalidCredentials)
	require.ErrorIs(t, wrongPassErr, service.ErrInvalidCredentials)
	assert.Equal(t, unknownErr, wrongPassErr)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	// deactivate behind the service's back
	stored, err := f.store.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	stored.IsActive = false
	f.store.Put(stored)

	_, err = f.svc.Login(ctx, "jane@school.test", "sekret1")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	u, err := f.svc.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, u.ID)

	_, err = f.svc.CurrentUser(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// a token for a deleted account is treated like a bad token
	other := auth.NewManager("test-secret-at-least-32-bytes-long", time.Hour)
	tok, err := other.Issue("00000000-0000-0000-0000-000000000000", user.RoleTeacher)
	require.NoError(t, err)

	_, err = f.svc.CurrentUser(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUpdateDetails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	name := "Jane Q. Teacher"
	email := "jane.q@school.test"

	updated, err := f.svc.UpdateDetails(ctx, res.Token, user.UpdateDetailsRequest{
		Name:  &name,
		Email: &email,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, email, updated.Email)

	// old email no longer resolves
	_, err = f.svc.Login(ctx, "jane@school.test", "sekret1")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "jane.q@school.test", "sekret1")
	assert.NoError(t, err)
}

func TestUpdateDetailsEmailTaken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "taken@school.test")
	res := f.register(t, "jane@school.test")

	email := "taken@school.test"
	_, err := f.svc.UpdateDetails(ctx, res.Token, user.UpdateDetailsRequest{Email: &email})

	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestUpdatePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	out, err := f.svc.UpdatePassword(ctx, res.Token, "sekret1", "newsekret")
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)

	// old password gone, new one works
	_, err = f.svc.Login(ctx, "jane@school.test", "sekret1")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "jane@school.test", "newsekret")
	assert.NoError(t, err)

	// the pre-change token stays valid until its own expiry
	_, err = f.svc.CurrentUser(ctx, res.Token)
	assert.NoError(t, err)
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)

	res := f.register(t, "jane@school.test")

	_, err := f.svc.UpdatePassword(context.Background(), res.Token, "wrong", "newsekret")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

// Oversized passwords would make bcrypt error out; that must read as bad
// input, never as a store fault the client should retry.
func TestPasswordOverCapIsValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	long := strings.Repeat("x", 80)

	res := f.register(t, "jane@school.test")

	require.NoError(t, f.svc.ForgotPassword(ctx, "jane@school.test"))
	raw := rawTokenFromMail(t, f.mailer.last(t))

	tests := []struct {
		name      string
		call      func() error
		wantField string
	}{
		{
			name: "register",
			call: func() error {
				_, err := f.svc.Register(ctx, service.RegisterRequest{
					Name: "Joe", Email: "joe@school.test", Password: long,
				})
				return err
			},
			wantField: "password",
		},
		{
			name: "update_password",
			call: func() error {
				_, err := f.svc.UpdatePassword(ctx, res.Token, "sekret1", long)
				return err
			},
			wantField: "newPassword",
		},
		{
			name: "reset_password",
			call: func() error {
				_, err := f.svc.ResetPassword(ctx, raw, long)
				return err
			},
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()

			var ve *service.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.False(t, service.IsTransient(err))
		})
	}
}

func TestForgotPasswordDeliversToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	require.NoError(t, f.svc.ForgotPassword(ctx, "jane@school.test"))

	msg := f.mailer.last(t)
	assert.Equal(t, "jane@school.test", msg.To)
	assert.Contains(t, msg.Body, "Reset token:")

	// stored form is a hash, never the raw token
	stored, err := f.store.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.NotContains(t, msg.Body, *stored.ResetTokenHash)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.ResetTokenExpiry, time.Minute)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "ghost@school.test")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestForgotPasswordDeliveryFailureRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	f.mailer.sendFn = func(ctx context.Context, msg mailx.Message) error {
		return errors.New("smtp connection refused")
	}

	err := f.svc.ForgotPassword(ctx, "jane@school.test")

	var de *service.DeliveryError
	require.ErrorAs(t, err, &de)

	// reset window must be closed again
	stored, getErr := f.store.GetByID(ctx, res.User.ID)
	require.NoError(t, getErr)
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)
}

func TestResetPasswordRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	require.NoError(t, f.svc.ForgotPassword(ctx, "jane@school.test"))
	raw := rawTokenFromMail(t, f.mailer.last(t))

	out, err := f.svc.ResetPassword(ctx, raw, "brandnew1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, out.User.ID)
	require.NotEmpty(t, out.Token)

	_, err = f.svc.Login(ctx, "jane@school.test", "brandnew1")
	assert.NoError(t, err)

	// single use: the same token must not work twice
	_, err = f.svc.ResetPassword(ctx, raw, "anothernew1")
	assert.ErrorIs(t, err, service.ErrResetTokenNotFoundOrExpired)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.register(t, "jane@school.test")

	// plant an already-expired reset window directly in the store
	raw, hash, _, err := f.resets.Generate()
	require.NoError(t, err)
	require.NoError(t, f.store.SetResetToken(ctx, res.User.ID, hash, time.Now().Add(-time.Minute)))

	_, err = f.svc.ResetPassword(ctx, raw, "brandnew1")
	assert.ErrorIs(t, err, service.ErrResetTokenNotFoundOrExpired)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.ResetPassword(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "brandnew1")
	assert.ErrorIs(t, err, service.ErrResetTokenNotFoundOrExpired)
}

func TestStoreFaultIsTransient(t *testing.T) {
	f := newAuthFixture(t)

	// a store error that is not a sentinel must surface as transient
	failing := &failingStore{err: errors.New("connection reset")}
	svc := service.NewAuth(failing, security.NewHasher(4), f.tokens, f.resets, f.mailer,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Login(context.Background(), "jane@school.test", "sekret1")

	var te *service.TransientError
	require.ErrorAs(t, err, &te)
	assert.True(t, service.IsTransient(err))
}

// failingStore fails every operation with a fixed error.
type failingStore struct {
	err error
}

func (s *failingStore) Create(ctx context.Context, u user.User) (user.User, error) {
	return user.User{}, s.err
}

func (s *failingStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return user.User{}, s.err
}

func (s *failingStore) GetByID(ctx context.Context, id string) (user.User, error) {
	return user.User{}, s.err
}

func (s *failingStore) UpdateDetails(ctx context.Context, id string, req user.UpdateDetailsRequest) (user.User, error) {
	return user.User{}, s.err
}

func (s *failingStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.err
}

func (s *failingStore) SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return s.err
}

func (s *failingStore) ClearResetToken(ctx context.Context, id string) error {
	return s.err
}

func (s *failingStore) GetByResetTokenHash(ctx context.Context, tokenHash string) (user.User, error) {
	return user.User{}, s.err
}

// rawTokenFromMail pulls the raw reset token out of the delivered body.
func rawTokenFromMail(t *testing.T, msg mailx.Message) string {
	t.Helper()

	const marker = "Reset token: "

	idx := strings.Index(msg.Body, marker)
	require.GreaterOrEqual(t, idx, 0, "mail body missing reset token line: %q", msg.Body)

	rest := msg.Body[idx+len(marker):]
	end := strings.Index(rest, "\n")
	require.GreaterOrEqual(t, end, 0)

	return rest[:end]
}
