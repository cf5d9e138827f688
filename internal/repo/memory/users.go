package memory

import (
	"context"
	"sync"
	"time"

	"github.com/campuskit/schoolhub/internal/domain/user"
)

// UsersRepo is an in-memory credential store with the same sentinel
// behavior as the postgres implementation. Used by unit tests and local
// development without a database.
type UsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

// Put overwrites a record wholesale, bypassing the store's invariants.
// Test scaffolding only.
func (r *UsersRepo) Put(u user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[u.ID]; ok && old.Email != u.Email {
		delete(r.byEmail, old.Email)
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.byID[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) UpdateDetails(_ context.Context, id string, req user.UpdateDetailsRequest) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if req.Email != nil && *req.Email != u.Email {
		if _, taken := r.byEmail[*req.Email]; taken {
			return user.User{}, user.ErrEmailTaken
		}

		delete(r.byEmail, u.Email)
		u.Email = *req.Email
		r.byEmail[u.Email] = id
	}

	if req.Name != nil {
		u.Name = *req.Name
	}

	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return u, nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return nil
}

func (r *UsersRepo) SetResetToken(_ context.Context, id, tokenHash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.ErrNotFound
	}

	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &expiry
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return nil
}

func (r *UsersRepo) ClearResetToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return user.ErrNotFound
	}

	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u

	return nil
}

func (r *UsersRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash {
			return u, nil
		}
	}

	return user.User{}, user.ErrNotFound
}
