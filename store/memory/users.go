package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/user"
)

// UserStore keeps users in a map keyed by ID with a unique email index.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserStore returns an empty store. now defaults to time.Now.
func NewUserStore(now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
		now:     now,
	}
}

func (s *UserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return user.User{}, user.ErrEmailConflict
	}
	if _, ok := s.byID[u.ID]; ok {
		return user.User{}, user.ErrEmailConflict
	}
	stored := u.Clone()
	s.byID[u.ID] = stored
	s.byEmail[u.Email] = u.ID
	return stored.Clone(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *UserStore) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if p.Email != nil && *p.Email != u.Email {
		if owner, taken := s.byEmail[*p.Email]; taken && owner != id {
			return user.User{}, user.ErrEmailConflict
		}
		delete(s.byEmail, u.Email)
		s.byEmail[*p.Email] = id
	}

	updated := user.Apply(u, p, s.now())
	s.byID[id] = updated
	return updated.Clone(), nil
}

func (s *UserStore) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	updated := user.ApplyFailure(u, threshold, lockUntil, s.now())
	s.byID[id] = updated
	return updated.Clone(), nil
}
