package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/internal/storetest"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// Integration tests run only when AUTHCORE_TEST_DATABASE_URL points at a
// disposable database. Every subtest truncates all tables.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("AUTHCORE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTHCORE_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE session_superseded_tokens, sessions, users`)
	require.NoError(t, err)
}

func TestUserStoreContract(t *testing.T) {
	pool := testPool(t)
	storetest.RunUserStore(t, func(t *testing.T) user.Store {
		truncate(t, pool)
		return NewUserStore(pool, func() time.Time { return storetest.Epoch })
	})
}

func TestSessionStoreContract(t *testing.T) {
	pool := testPool(t)
	users := NewUserStore(pool, nil)

	seed := func(t *testing.T, id string) {
		_, err := users.Create(context.Background(), user.User{
			ID:             id,
			Email:          id + "@example.test",
			PasswordDigest: "x",
			IsActive:       true,
			CreatedAt:      storetest.Epoch,
			UpdatedAt:      storetest.Epoch,
		})
		require.NoError(t, err)
	}

	storetest.RunSessionStore(t, func(t *testing.T) session.Store {
		truncate(t, pool)
		return NewSessionStore(pool)
	}, seed)
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := testPool(t)
	require.NoError(t, Migrate(context.Background(), pool))
}
