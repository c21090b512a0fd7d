package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/session"
)

// SessionStore keeps sessions in maps guarded by one mutex, so every
// conditional update is atomic.
type SessionStore struct {
	mu      sync.RWMutex
	byID    map[string]session.Session
	byToken map[string]string
	byUser  map[string]map[string]struct{}
	// superseded lists hashes replaced by ReplaceToken, per session id.
	superseded map[string][]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:    make(map[string]session.Session),
		byToken: make(map[string]string),
		byUser:  make(map[string]map[string]struct{}),

		superseded: make(map[string][]string),
	}
}

func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[sess.ID] = sess
	s.byToken[sess.TokenHash] = sess.ID
	ids, ok := s.byUser[sess.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[sess.UserID] = ids
	}
	ids[sess.ID] = struct{}{}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[tokenHash]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]session.Session, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		out = append(out, s.byID[id])
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id, ownerUserID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || sess.Revoked || (ownerUserID != "" && sess.UserID != ownerUserID) {
		return false, nil
	}
	sess.Revoked = true
	sess.UpdatedAt = now
	s.byID[id] = sess
	return true, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id := range s.byUser[userID] {
		sess := s.byID[id]
		if sess.Revoked {
			continue
		}
		sess.Revoked = true
		sess.UpdatedAt = now
		s.byID[id] = sess
		changed++
	}
	return changed, nil
}

func (s *SessionStore) ReplaceToken(ctx context.Context, id, oldHash, newHash string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || sess.Revoked || sess.TokenHash != oldHash {
		return false, nil
	}
	s.superseded[id] = append(s.superseded[id], oldHash)
	sess.TokenHash = newHash
	sess.UpdatedAt = now
	s.byID[id] = sess
	s.byToken[newHash] = id
	return true, nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, sess := range s.byID {
		if sess.ExpiresAt.After(now) {
			continue
		}
		delete(s.byID, id)
		delete(s.byToken, sess.TokenHash)
		for _, old := range s.superseded[id] {
			delete(s.byToken, old)
		}
		delete(s.superseded, id)
		if ids := s.byUser[sess.UserID]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.byUser, sess.UserID)
			}
		}
		deleted++
	}
	return deleted, nil
}
