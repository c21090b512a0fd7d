package user

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailConflict is returned when a create or update would duplicate an email.
	ErrEmailConflict = errors.New("email already in use")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("user store unavailable")
)

// Store persists credential records.
//
// Emails passed to GetByEmail, Create and Update are already normalized.
// Implementations must enforce email uniqueness themselves; a uniqueness
// violation raised by the backend is reported as ErrEmailConflict.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, p Patch) (User, error)

	// RecordLoginFailure atomically increments FailedLoginAttempts and, when
	// the new count reaches threshold, sets IsLocked and LockedUntil.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (User, error)
}
