package authcore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/store/memory"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-password-123"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig returns defaults with a test secret and the cheapest argon2id
// parameters the hasher accepts.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	return cfg
}

type testEnv struct {
	svc   *Service
	users *memory.UserStore
	audit *MemorySink
	clock *testClock
	mr    *miniredis.Miniredis
	rdb   *redis.Client
}

func newTestEnv(t testing.TB, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clock := newTestClock()
	users := memory.NewUserStore(clock.Now)
	sink := &MemorySink{}

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithAuditSink(sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	t.Cleanup(func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{svc: svc, users: users, audit: sink, clock: clock, mr: mr, rdb: rdb}
}

func (e *testEnv) register(t testing.TB) *AuthResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), testEmail, testPassword, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func (e *testEnv) login(t testing.TB) *AuthResult {
	t.Helper()
	res, err := e.svc.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func (e *testEnv) activeSessions(t testing.TB, userID string) int {
	t.Helper()
	list, err := e.svc.GetSessions(context.Background(), userID)
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	return len(list)
}
