package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

type UserRepo struct{ s *Store }

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (r *UserRepo) emailTaken(email string, except uint64) bool {
	for id, u := range r.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if r.emailTaken(u.Email, 0) {
		return repository.ErrEmailExists
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := r.s.now()
	u.ID = r.s.nextID()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) List(_ context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepo) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if r.emailTaken(u.Email, u.ID) {
		return repository.ErrEmailExists
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

// Delete refuses users that loans or reservations still reference, the
// way the foreign keys do in MySQL.  Their refresh tokens go with them.
func (r *UserRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, l := range r.s.loans {
		if l.UserID == id {
			return repository.ErrInUse
		}
	}
	for _, res := range r.s.reservations {
		if res.UserID == id {
			return repository.ErrInUse
		}
	}
	for hash, t := range r.s.tokens {
		if t.userID == id {
			delete(r.s.tokens, hash)
		}
	}
	for _, c := range r.s.copies {
		if c.ReservedFor != nil && *c.ReservedFor == id {
			c.ReservedFor = nil
		}
	}
	delete(r.s.users, id)
	return nil
}

type TokenRepo struct{ s *Store }

func (r *TokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return repository.ErrNotFound
	}
	r.s.tokens[tokenHash] = &refreshToken{userID: userID, expiresAt: exp.UTC()}
	return nil
}

func (r *TokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.revoked || r.s.now().After(t.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (r *TokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.revoked {
		return repository.ErrNotFound
	}
	t.revoked = true
	return nil
}

func (r *TokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.userID == userID {
			t.revoked = true
		}
	}
	return nil
}
