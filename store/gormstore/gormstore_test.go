package gormstore

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MrEthical07/authcore/internal/storetest"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each :memory: connection is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestUserStoreContract(t *testing.T) {
	storetest.RunUserStore(t, func(t *testing.T) user.Store {
		return NewUserStore(openTestDB(t), func() time.Time { return storetest.Epoch })
	})
}

func TestSessionStoreContract(t *testing.T) {
	storetest.RunSessionStore(t, func(t *testing.T) session.Store {
		return NewSessionStore(openTestDB(t))
	}, nil)
}

func TestPatchColumnsAlwaysTouchesUpdatedAt(t *testing.T) {
	now := storetest.Epoch
	cols := patchColumns(user.Patch{}, now)
	assert.Equal(t, map[string]any{"updated_at": now}, cols)

	cols = patchColumns(user.ClearLock(), now)
	assert.Equal(t, false, cols["is_locked"])
	assert.Equal(t, 0, cols["failed_login_attempts"])
	assert.Contains(t, cols, "locked_until")
}

func TestUpdateEmptyPatchOnMissingUser(t *testing.T) {
	store := NewUserStore(openTestDB(t), nil)
	_, err := store.Update(t.Context(), "missing", user.Patch{})
	assert.ErrorIs(t, err, user.ErrNotFound)
}
