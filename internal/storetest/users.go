package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/user"
)

// Epoch is the base time used by the suites. Millisecond precision keeps it
// representable in every backend.
var Epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newUser(email string) user.User {
	return user.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		DisplayName:    "Test User",
		IsActive:       true,
		CreatedAt:      Epoch,
		UpdatedAt:      Epoch,
	}
}

// RunUserStore exercises the user.Store contract.
func RunUserStore(t *testing.T, newStore func(t *testing.T) user.Store) {
	t.Run("CreateAndLookup", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		u := newUser("a@x.com")
		created, err := store.Create(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, u.ID, created.ID)

		byID, err := store.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", byID.Email)
		assert.True(t, byID.IsActive)
		assert.False(t, byID.IsLocked)
		assert.Zero(t, byID.FailedLoginAttempts)
		assert.Nil(t, byID.LockedUntil)

		byEmail, err := store.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		_, err = store.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, user.ErrNotFound)
		_, err = store.GetByEmail(ctx, "missing@x.com")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, newUser("dup@x.com"))
		require.NoError(t, err)
		_, err = store.Create(ctx, newUser("dup@x.com"))
		assert.ErrorIs(t, err, user.ErrEmailConflict)
	})

	t.Run("ConcurrentCreateSameEmail", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Create(ctx, newUser("race@x.com"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, user.ErrEmailConflict)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("UpdatePatch", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		u := newUser("patch@x.com")
		_, err := store.Create(ctx, u)
		require.NoError(t, err)
		_, err = store.Create(ctx, newUser("other@x.com"))
		require.NoError(t, err)

		name := "Renamed"
		updated, err := store.Update(ctx, u.ID, user.Patch{DisplayName: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.DisplayName)
		assert.Equal(t, "patch@x.com", updated.Email)

		taken := "other@x.com"
		_, err = store.Update(ctx, u.ID, user.Patch{Email: &taken})
		assert.ErrorIs(t, err, user.ErrEmailConflict)

		fresh := "fresh@x.com"
		updated, err = store.Update(ctx, u.ID, user.Patch{Email: &fresh})
		require.NoError(t, err)
		assert.Equal(t, "fresh@x.com", updated.Email)

		got, err := store.GetByEmail(ctx, "fresh@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		_, err = store.GetByEmail(ctx, "patch@x.com")
		assert.ErrorIs(t, err, user.ErrNotFound)

		_, err = store.Update(ctx, uuid.NewString(), user.Patch{DisplayName: &name})
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("LoginFailuresLockAtThreshold", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		u := newUser("lock@x.com")
		_, err := store.Create(ctx, u)
		require.NoError(t, err)

		lockUntil := Epoch.Add(15 * time.Minute)
		for i := 1; i < 5; i++ {
			got, err := store.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
			require.NoError(t, err)
			assert.Equal(t, i, got.FailedLoginAttempts)
			assert.False(t, got.IsLocked, "locked early at attempt %d", i)
		}

		got, err := store.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 5, got.FailedLoginAttempts)
		assert.True(t, got.IsLocked)
		require.NotNil(t, got.LockedUntil)
		assert.True(t, got.LockedUntil.Equal(lockUntil), "locked until %s", got.LockedUntil)

		cleared, err := store.Update(ctx, u.ID, user.ClearLock())
		require.NoError(t, err)
		assert.False(t, cleared.IsLocked)
		assert.Nil(t, cleared.LockedUntil)
		assert.Zero(t, cleared.FailedLoginAttempts)

		_, err = store.RecordLoginFailure(ctx, uuid.NewString(), 5, lockUntil)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("ConcurrentFailuresAreNotLost", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		u := newUser("burst@x.com")
		_, err := store.Create(ctx, u)
		require.NoError(t, err)

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.RecordLoginFailure(ctx, u.ID, 5, Epoch.Add(time.Minute))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, workers, got.FailedLoginAttempts, fmt.Sprintf("lost updates: %d", workers-got.FailedLoginAttempts))
		assert.True(t, got.IsLocked)
	})
}
