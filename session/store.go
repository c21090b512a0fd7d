package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session matches the lookup.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionCorrupt is returned when a stored record cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
)

// Store persists refresh sessions.
//
// Revoke, RevokeAllForUser and ReplaceToken must each be a single atomic
// conditional update: a concurrent reader observes either the state before or
// the state after, never a partial write.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)

	// GetByTokenHash resolves the current token hash of a session and every
	// hash it carried before a ReplaceToken. A superseded hash returns the
	// session with its current TokenHash, so callers detect replay by
	// comparing the two. The index entries live until the session is deleted.
	GetByTokenHash(ctx context.Context, tokenHash string) (Session, error)

	// ListForUser returns every stored session of the user regardless of state.
	ListForUser(ctx context.Context, userID string) ([]Session, error)

	// Revoke marks the session revoked iff it exists, is owned by ownerUserID
	// (when non-empty), and is not already revoked.
	Revoke(ctx context.Context, id, ownerUserID string, now time.Time) (bool, error)

	// RevokeAllForUser revokes every non-revoked session of the user and
	// returns how many changed.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error)

	// ReplaceToken swaps the token hash iff the session is not revoked and
	// still carries oldHash. oldHash keeps resolving to the session.
	ReplaceToken(ctx context.Context, id, oldHash, newHash string, now time.Time) (bool, error)

	// DeleteExpired removes sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
