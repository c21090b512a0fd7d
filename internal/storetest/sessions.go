package storetest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/session"
)

// NewSession returns a live session created at created with a 7-day horizon.
func NewSession(id, userID string, created time.Time) session.Session {
	return session.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: "hash-" + id,
		ClientIP:  "203.0.113.7",
		UserAgent: "storetest",
		ExpiresAt: created.Add(7 * 24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// RunSessionStore exercises the session.Store contract. User IDs are opaque
// to session stores except where a backend enforces a foreign key; such
// backends pass seedUser to create the owning row first.
func RunSessionStore(t *testing.T, newStore func(t *testing.T) session.Store, seedUser func(t *testing.T, id string)) {
	if seedUser == nil {
		seedUser = func(*testing.T, string) {}
	}
	const (
		u1 = "00000000-0000-0000-0000-000000000001"
		u2 = "00000000-0000-0000-0000-000000000002"
	)

	t.Run("CreateAndLookup", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()

		sess := NewSession("s1", u1, Epoch)
		require.NoError(t, store.Create(ctx, sess))

		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, u1, got.UserID)
		assert.Equal(t, "hash-s1", got.TokenHash)
		assert.False(t, got.Revoked)
		assert.True(t, got.ExpiresAt.Equal(sess.ExpiresAt))
		assert.Equal(t, "203.0.113.7", got.ClientIP)

		byToken, err := store.GetByTokenHash(ctx, "hash-s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", byToken.ID)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.GetByTokenHash(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("RevokeIsConditional", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewSession("s1", u1, Epoch)))

		changed, err := store.Revoke(ctx, "s1", u2, Epoch)
		require.NoError(t, err)
		assert.False(t, changed, "non-owner revoke must be refused")

		changed, err = store.Revoke(ctx, "s1", u1, Epoch.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = store.Revoke(ctx, "s1", "", Epoch.Add(2*time.Minute))
		require.NoError(t, err)
		assert.False(t, changed, "second revoke must be a no-op")

		got, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, got.Revoked)

		changed, err = store.Revoke(ctx, "missing", "", Epoch)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("RevokeAllCountsOnlyLive", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		seedUser(t, u2)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			id := "s" + strconv.Itoa(i)
			require.NoError(t, store.Create(ctx, NewSession(id, u1, Epoch.Add(time.Duration(i)*time.Second))))
		}
		require.NoError(t, store.Create(ctx, NewSession("other", u2, Epoch)))
		_, err := store.Revoke(ctx, "s0", "", Epoch)
		require.NoError(t, err)

		n, err := store.RevokeAllForUser(ctx, u1, Epoch)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		other, err := store.Get(ctx, "other")
		require.NoError(t, err)
		assert.False(t, other.Revoked)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()

		for i, id := range []string{"s-old", "s-mid", "s-new"} {
			require.NoError(t, store.Create(ctx, NewSession(id, u1, Epoch.Add(time.Duration(i)*time.Minute))))
		}

		list, err := store.ListForUser(ctx, u1)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "s-new", list[0].ID)
		assert.Equal(t, "s-old", list[2].ID)

		empty, err := store.ListForUser(ctx, u2)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ReplaceTokenCAS", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, NewSession("s1", u1, Epoch)))

		ok, err := store.ReplaceToken(ctx, "s1", "wrong", "next", Epoch)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.ReplaceToken(ctx, "s1", "hash-s1", "next", Epoch)
		require.NoError(t, err)
		assert.True(t, ok)

		superseded, err := store.GetByTokenHash(ctx, "hash-s1")
		require.NoError(t, err, "a replaced hash keeps resolving to its session")
		assert.Equal(t, "s1", superseded.ID)
		assert.Equal(t, "next", superseded.TokenHash)
		got, err := store.GetByTokenHash(ctx, "next")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)

		_, err = store.Revoke(ctx, "s1", "", Epoch)
		require.NoError(t, err)
		ok, err = store.ReplaceToken(ctx, "s1", "next", "again", Epoch)
		require.NoError(t, err)
		assert.False(t, ok, "revoked sessions keep their token")
	})

	t.Run("SupersededHashesLiveUntilSweep", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()

		sess := NewSession("s1", u1, Epoch)
		sess.ExpiresAt = Epoch.Add(time.Hour)
		require.NoError(t, store.Create(ctx, sess))

		for _, step := range [][2]string{{"hash-s1", "h2"}, {"h2", "h3"}} {
			ok, err := store.ReplaceToken(ctx, "s1", step[0], step[1], Epoch)
			require.NoError(t, err)
			require.True(t, ok)
		}

		ok, err := store.ReplaceToken(ctx, "s1", "hash-s1", "h4", Epoch)
		require.NoError(t, err)
		assert.False(t, ok, "a superseded hash cannot win a swap")

		for _, h := range []string{"hash-s1", "h2", "h3"} {
			got, err := store.GetByTokenHash(ctx, h)
			require.NoError(t, err, h)
			assert.Equal(t, "h3", got.TokenHash, h)
		}

		n, err := store.DeleteExpired(ctx, Epoch.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		for _, h := range []string{"hash-s1", "h2", "h3"} {
			_, err := store.GetByTokenHash(ctx, h)
			assert.ErrorIs(t, err, session.ErrNotFound, h)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		store := newStore(t)
		seedUser(t, u1)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			sess := NewSession("old"+strconv.Itoa(i), u1, Epoch)
			sess.ExpiresAt = Epoch.Add(time.Hour)
			require.NoError(t, store.Create(ctx, sess))
		}
		require.NoError(t, store.Create(ctx, NewSession("live", u1, Epoch)))

		n, err := store.DeleteExpired(ctx, Epoch.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		_, err = store.GetByTokenHash(ctx, "hash-old0")
		assert.ErrorIs(t, err, session.ErrNotFound)
		list, err := store.ListForUser(ctx, u1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "live", list[0].ID)

		n, err = store.DeleteExpired(ctx, Epoch.Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
