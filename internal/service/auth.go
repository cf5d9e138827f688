package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/campuskit/schoolhub/internal/auth"
	"github.com/campuskit/schoolhub/internal/domain/user"
	mailx "github.com/campuskit/schoolhub/internal/mail"
	"github.com/google/uuid"
)

// CredentialStore is the persistence boundary for User records. The store
// persists pre-hashed values only; hashing happens here, before the write.
type CredentialStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateDetails(ctx context.Context, id string, req user.UpdateDetailsRequest) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	GetByResetTokenHash(ctx context.Context, tokenHash string) (user.User, error)
}

// PasswordHasher is implemented by security.Hasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) error
}

type Auth struct {
	store  CredentialStore
	hasher PasswordHasher
	tokens *auth.Manager
	resets *auth.ResetManager
	mailer mailx.Mailer
	log    *slog.Logger
}

func NewAuth(store CredentialStore, hasher PasswordHasher, tokens *auth.Manager, resets *auth.ResetManager, mailer mailx.Mailer, log *slog.Logger) *Auth {
	return &Auth{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		resets: resets,
		mailer: mailer,
		log:    log,
	}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// bcrypt rejects inputs longer than 72 bytes, so the cap is enforced as
// ordinary validation instead of surfacing as a hashing fault.
const maxPasswordBytes = 72

func checkPassword(field, plain string) error {
	if len(plain) < 6 {
		return invalidField(field, "must be at least 6 characters")
	}

	if len(plain) > maxPasswordBytes {
		return invalidField(field, "must be at most 72 characters")
	}

	return nil
}

// TokenResult is what every session-issuing operation returns.
type TokenResult struct {
	Token string
	User  user.User
}

func (s *Auth) Register(ctx context.Context, req RegisterRequest) (TokenResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return TokenResult{}, invalidField("name", "is required")
	}

	email, err := normalizeEmail(req.Email)

	if err != nil {
		return TokenResult{}, invalidField("email", "must be a valid email address")
	}

	if err := checkPassword("password", req.Password); err != nil {
		return TokenResult{}, err
	}

	role := req.Role

	if role == "" {
		role = user.DefaultRole
	}

	if !user.ValidRole(role) {
		return TokenResult{}, invalidField("role", "must be one of admin, teacher, student, parent")
	}

	hash, err := s.hasher.Hash(req.Password)

	if err != nil {
		return TokenResult{}, storeFault(err)
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.Create(ctx, u)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return TokenResult{}, invalidField("email", "is already registered")
		}

		return TokenResult{}, storeFault(err)
	}

	return s.issueFor(created)
}

func (s *Auth) Login(ctx context.Context, email, password string) (TokenResult, error) {
	email, err := normalizeEmail(email)

	if err != nil {
		// Unknown-shaped email behaves exactly like an unknown account.
		return TokenResult{}, ErrInvalidCredentials
	}

	u, err := s.store.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenResult{}, ErrInvalidCredentials
		}

		return TokenResult{}, storeFault(err)
	}

	if !u.IsActive {
		return TokenResult{}, ErrInvalidCredentials
	}

	if err := s.hasher.Verify(u.PasswordHash, password); err != nil {
		return TokenResult{}, ErrInvalidCredentials
	}

	return s.issueFor(u)
}

// CurrentUser resolves a session token to its user, hash excluded by the
// User JSON contract.
func (s *Auth) CurrentUser(ctx context.Context, token string) (user.User, error) {
	claims, err := s.tokens.Validate(token)

	if err != nil {
		return user.User{}, auth.ErrInvalidToken
	}

	u, err := s.store.GetByID(ctx, claims.UserID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, auth.ErrInvalidToken
		}

		return user.User{}, storeFault(err)
	}

	return u, nil
}

func (s *Auth) UpdateDetails(ctx context.Context, token string, req user.UpdateDetailsRequest) (user.User, error) {
	u, err := s.CurrentUser(ctx, token)

	if err != nil {
		return user.User{}, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return user.User{}, invalidField("name", "must not be empty")
	}

	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)

		if err != nil {
			return user.User{}, invalidField("email", "must be a valid email address")
		}

		req.Email = &email
	}

	updated, err := s.store.UpdateDetails(ctx, u.ID, req)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, invalidField("email", "is already registered")
		}

		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, auth.ErrInvalidToken
		}

		return user.User{}, storeFault(err)
	}

	return updated, nil
}

func (s *Auth) UpdatePassword(ctx context.Context, token, currentPassword, newPassword string) (TokenResult, error) {
	u, err := s.CurrentUser(ctx, token)

	if err != nil {
		return TokenResult{}, err
	}

	if err := s.hasher.Verify(u.PasswordHash, currentPassword); err != nil {
		return TokenResult{}, ErrInvalidCredentials
	}

	if err := checkPassword("newPassword", newPassword); err != nil {
		return TokenResult{}, err
	}

	hash, err := s.hasher.Hash(newPassword)

	if err != nil {
		return TokenResult{}, storeFault(err)
	}

	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return TokenResult{}, storeFault(err)
	}

	// Fresh token; outstanding tokens stay valid until their own expiry.
	return s.issueFor(u)
}

// ForgotPassword opens a reset window and hands the raw token to the mail
// collaborator. A failed delivery rolls the window back so the token can
// never be consumed.
func (s *Auth) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)

	if err != nil {
		return ErrNotFound
	}

	u, err := s.store.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotFound
		}

		return storeFault(err)
	}

	raw, hash, expiry, err := s.resets.Generate()

	if err != nil {
		return storeFault(err)
	}

	if err := s.store.SetResetToken(ctx, u.ID, hash, expiry); err != nil {
		return storeFault(err)
	}

	msg := mailx.Message{
		To:      u.Email,
		Subject: "Password reset",
		Body: fmt.Sprintf(
			"You are receiving this email because a password reset was requested for your account.\n\n"+
				"Reset token: %s\n\nThe token expires at %s.",
			raw, expiry.Format(time.RFC3339),
		),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		// Roll the window back before surfacing the failure.
		if clearErr := s.store.ClearResetToken(ctx, u.ID); clearErr != nil {
			s.log.Error("failed to clear reset token after delivery failure",
				"user_id", u.ID, "err", clearErr)
		}

		return &DeliveryError{Err: err}
	}

	return nil
}

func (s *Auth) ResetPassword(ctx context.Context, rawToken, newPassword string) (TokenResult, error) {
	if err := checkPassword("password", newPassword); err != nil {
		return TokenResult{}, err
	}

	u, err := s.store.GetByResetTokenHash(ctx, s.resets.HashToken(rawToken))

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenResult{}, ErrResetTokenNotFoundOrExpired
		}

		return TokenResult{}, storeFault(err)
	}

	if u.ResetTokenExpiry == nil || s.resets.Expired(*u.ResetTokenExpiry) {
		return TokenResult{}, ErrResetTokenNotFoundOrExpired
	}

	hash, err := s.hasher.Hash(newPassword)

	if err != nil {
		return TokenResult{}, storeFault(err)
	}

	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return TokenResult{}, storeFault(err)
	}

	// Single use: clearing the fields is what prevents replay.
	if err := s.store.ClearResetToken(ctx, u.ID); err != nil {
		return TokenResult{}, storeFault(err)
	}

	return s.issueFor(u)
}

func (s *Auth) issueFor(u user.User) (TokenResult, error) {
	token, err := s.tokens.Issue(u.ID, u.Role)

	if err != nil {
		return TokenResult{}, storeFault(err)
	}

	return TokenResult{Token: token, User: u}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return "", errors.New("empty email")
	}

	addr, err := mail.ParseAddress(email)

	if err != nil || addr.Address != email {
		return "", errors.New("malformed email")
	}

	return email, nil
}
