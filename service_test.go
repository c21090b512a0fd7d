package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/user"
)

func TestRegisterThenLoginCreatesTwoSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg := env.register(t)
	if reg.User.Email != testEmail || reg.AccessToken == "" || reg.RefreshToken == "" {
		t.Fatalf("unexpected register result: %+v", reg)
	}
	if reg.User.PasswordDigest == testPassword || !strings.HasPrefix(reg.User.PasswordDigest, "$argon2id$") {
		t.Fatalf("expected argon2id digest, got %q", reg.User.PasswordDigest)
	}

	env.clock.Advance(time.Second)
	login := env.login(t)
	if login.Session.ID == reg.Session.ID {
		t.Fatal("expected login to open a new session")
	}
	if got := login.Session.ExpiresAt.Sub(env.clock.Now()); got != 7*24*time.Hour {
		t.Fatalf("expected 7d session horizon, got %s", got)
	}

	list, err := env.svc.GetSessions(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(list))
	}
	if list[0].ID != login.Session.ID {
		t.Fatalf("expected newest session first, got %s", list[0].ID)
	}
	for _, s := range list {
		if s.TokenHash == reg.RefreshToken || s.TokenHash == login.RefreshToken {
			t.Fatal("plaintext refresh token persisted")
		}
	}
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, "  Alice@Example.COM ", testPassword, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := env.svc.Register(ctx, testEmail, testPassword, "")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if got := env.svc.metrics.Value(MetricRegisterDuplicate); got != 1 {
		t.Fatalf("expected duplicate metric 1, got %d", got)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string][2]string{
		"bad email":      {"not-an-email", testPassword},
		"short password": {testEmail, "short"},
		"long password":  {testEmail, strings.Repeat("x", 2048)},
	}
	for name, in := range cases {
		_, err := env.svc.Register(ctx, in[0], in[1], "")
		if KindOf(err) != KindInvalidInput {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestLoginUnknownEmailIsIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	_, unknown := env.svc.Login(ctx, "nobody@example.com", testPassword)
	_, wrong := env.svc.Login(ctx, testEmail, "wrong-password")
	if !errors.Is(unknown, ErrInvalidCredentials) || !errors.Is(wrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("error text leaks account existence: %q vs %q", unknown, wrong)
	}

	key := "alf:" + internal.HashHex("nobody@example.com")
	if got, err := env.mr.Get(key); err != nil || got != "1" {
		t.Fatalf("expected unknown-email bucket at 1, got %q err=%v", got, err)
	}
}

func TestLoginLockoutAndAutoUnlock(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := env.svc.Login(ctx, testEmail, "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	_, err := env.svc.Login(ctx, testEmail, testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
	locked := env.audit.Named(EventAccountLocked)
	if len(locked) != 1 {
		t.Fatalf("expected one account_locked event, got %d", len(locked))
	}
	if locked[0].Meta[MetaOutcome] != "failure" || locked[0].Meta[MetaCount] != "5" {
		t.Fatalf("unexpected account_locked meta: %+v", locked[0].Meta)
	}

	env.clock.Advance(15*time.Minute + time.Second)
	res, err := env.svc.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	if res.User.IsLocked || res.User.FailedLoginAttempts != 0 || res.User.LockedUntil != nil {
		t.Fatalf("expected lock cleared, got %+v", res.User)
	}
	if n := len(env.audit.Named(EventAccountUnlocked)); n != 1 {
		t.Fatalf("expected one account_unlocked event, got %d", n)
	}

	stored, err := env.users.GetByID(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.IsLocked {
		t.Fatal("stored record still locked")
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = env.svc.Login(ctx, testEmail, "wrong-password")
	}
	res := env.login(t)
	if res.User.FailedLoginAttempts != 0 {
		t.Fatalf("expected failures reset, got %d", res.User.FailedLoginAttempts)
	}

	for i := 0; i < 4; i++ {
		_, _ = env.svc.Login(ctx, testEmail, "wrong-password")
	}
	if _, err := env.svc.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("expected counter to have restarted, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	inactive := false
	if _, err := env.users.Update(ctx, reg.User.ID, user.Patch{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.svc.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); !errors.Is(err, ErrUserInvalid) {
		t.Fatalf("expected ErrUserInvalid on refresh, got %v", err)
	}
	if n := env.activeSessions(t, reg.User.ID); n != 0 {
		t.Fatalf("expected session revoked, %d active", n)
	}
}

func TestLoginRehashesWeakDigest(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)

	stronger := testConfig()
	stronger.Password.Time = 2
	svc, err := New().
		WithConfig(stronger).
		WithRedis(env.rdb).
		WithUserStore(env.users).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	res, err := svc.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.PasswordDigest == reg.User.PasswordDigest || !strings.Contains(res.User.PasswordDigest, "t=2") {
		t.Fatalf("expected digest upgraded to t=2, got %q", res.User.PasswordDigest)
	}
	if got := svc.metrics.Value(MetricPasswordRehashed); got != 1 {
		t.Fatalf("expected rehash metric 1, got %d", got)
	}
}

func TestRefreshKeepsTokenByDefault(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	env.clock.Advance(time.Minute)
	res, err := env.svc.RefreshToken(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.RefreshToken != "" || res.SessionID != reg.Session.ID {
		t.Fatalf("unexpected refresh result: %+v", res)
	}
	id, ok := env.svc.ValidateAccessToken(ctx, res.AccessToken)
	if !ok || id.UserID != reg.User.ID {
		t.Fatalf("expected fresh access token to validate, got %+v ok=%v", id, ok)
	}

	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); err != nil {
		t.Fatalf("expected token reusable without rotation, got %v", err)
	}
}

func TestRefreshRejectsUnknownAndMalformed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unknown, err := internal.NewRefreshToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	for _, token := range []string{"", "garbage", unknown} {
		if _, err := env.svc.RefreshToken(ctx, token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("%q: expected ErrInvalidRefreshToken, got %v", token, err)
		}
	}
}

func TestReplayAfterLogoutRevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	env.clock.Advance(time.Second)
	env.login(t)
	ctx := context.Background()

	env.svc.Logout(ctx, reg.RefreshToken)
	if n := env.activeSessions(t, reg.User.ID); n != 1 {
		t.Fatalf("expected one session left after logout, got %d", n)
	}

	_, err := env.svc.RefreshToken(ctx, reg.RefreshToken)
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}
	if n := env.activeSessions(t, reg.User.ID); n != 0 {
		t.Fatalf("expected zero active sessions after replay, got %d", n)
	}

	events := env.audit.Named(EventTokenReuseDetected)
	if len(events) != 1 || events[0].ActorID != reg.User.ID || events[0].Meta[MetaCount] != "1" {
		t.Fatalf("unexpected reuse audit trail: %+v", events)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	env.svc.Logout(ctx, reg.RefreshToken)
	env.svc.Logout(ctx, reg.RefreshToken)
	env.svc.Logout(ctx, "not-a-token")
	env.svc.Logout(ctx, "")

	if n := len(env.audit.Named(EventLogout)); n != 1 {
		t.Fatalf("expected a single logout event, got %d", n)
	}
}

func TestRefreshExpiredSessionIsRevoked(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	env.clock.Advance(7 * 24 * time.Hour)
	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}

	stored, err := env.svc.sessions.sessions.Get(ctx, reg.Session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("expected expired session to be revoked")
	}
}

func TestRefreshRotationIssuesNewToken(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.RotateOnRefresh = true })
	reg := env.register(t)
	ctx := context.Background()

	res, err := env.svc.RefreshToken(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.RefreshToken == "" || res.RefreshToken == reg.RefreshToken {
		t.Fatalf("expected a new refresh token, got %q", res.RefreshToken)
	}

	next, err := env.svc.RefreshToken(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("expected rotated token accepted, got %v", err)
	}
	if next.SessionID != reg.Session.ID {
		t.Fatalf("rotation must keep the session, got %s", next.SessionID)
	}
}

func TestRefreshRotationReplayOfSupersededTokenRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.RotateOnRefresh = true })
	reg := env.register(t)
	env.clock.Advance(time.Second)
	env.login(t)
	ctx := context.Background()

	res, err := env.svc.RefreshToken(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	env.svc.Logout(ctx, reg.RefreshToken)
	if n := env.activeSessions(t, reg.User.ID); n != 2 {
		t.Fatalf("logout with a superseded token must not revoke, got %d active", n)
	}

	_, err = env.svc.RefreshToken(ctx, reg.RefreshToken)
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}
	list, err := env.svc.GetSessions(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected zero active sessions after replay, got %d", len(list))
	}

	if _, err := env.svc.RefreshToken(ctx, res.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected rotated token to die with the session, got %v", err)
	}

	events := env.audit.Named(EventTokenReuseDetected)
	if len(events) == 0 {
		t.Fatal("expected a token_reuse_detected event")
	}
	ev := events[0]
	if ev.ActorID != reg.User.ID || ev.Meta[MetaSessionID] != reg.Session.ID || ev.Meta[MetaCount] != "2" {
		t.Fatalf("unexpected reuse event: %+v", ev)
	}
	if ev.Meta[MetaOutcome] != "failure" {
		t.Fatalf("expected failure outcome on reuse event, got %q", ev.Meta[MetaOutcome])
	}
}

func TestRefreshLockedOwnerRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	locked := true
	until := env.clock.Now().Add(time.Hour)
	if _, err := env.users.Update(ctx, reg.User.ID, user.Patch{IsLocked: &locked, LockedUntil: &until}); err != nil {
		t.Fatalf("lock user: %v", err)
	}

	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); !errors.Is(err, ErrUserInvalid) {
		t.Fatalf("expected ErrUserInvalid, got %v", err)
	}
	list, err := env.svc.GetSessions(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	for _, s := range list {
		if s.ID == reg.Session.ID {
			t.Fatal("expected session of a locked owner to be revoked")
		}
	}

	events := env.audit.Named(EventRefreshUserInvalid)
	if len(events) != 1 || events[0].Meta[MetaReason] != "locked" {
		t.Fatalf("unexpected user-invalid audit trail: %+v", events)
	}
}

func TestRefreshRotationConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.RotateOnRefresh = true })
	reg := env.register(t)

	const n = 16
	results := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			<-start
			_, err := env.svc.RefreshToken(context.Background(), reg.RefreshToken)
			results <- err
		}()
	}
	close(start)

	success := 0
	for i := 0; i < n; i++ {
		err := <-results
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrTokenReuseDetected):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	env.clock.Advance(time.Second)
	env.login(t)
	ctx := context.Background()

	err := env.svc.ChangePassword(ctx, reg.User.ID, "wrong-password", "new-password-456")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if err := env.svc.ChangePassword(ctx, reg.User.ID, testPassword, "new-password-456"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if n := env.activeSessions(t, reg.User.ID); n != 0 {
		t.Fatalf("expected all sessions revoked, got %d", n)
	}
	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected old refresh token to trip reuse detection, got %v", err)
	}

	if _, err := env.svc.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := env.svc.Login(ctx, testEmail, "new-password-456"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	events := env.audit.Named(EventPasswordChanged)
	if len(events) != 2 || events[1].Meta[MetaCount] != "2" {
		t.Fatalf("unexpected password_changed events: %+v", events)
	}

	if err := env.svc.ChangePassword(ctx, "missing", testPassword, "x-password-789"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuditCarriesRequestMetadataAndNoSecrets(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.4"), "test-agent/1.0")

	reg, err := env.svc.Register(ctx, testEmail, testPassword, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Session.ClientIP != "198.51.100.4" || reg.Session.UserAgent != "test-agent/1.0" {
		t.Fatalf("request metadata not stored on session: %+v", reg.Session)
	}
	if _, err := env.svc.RefreshToken(ctx, reg.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	env.svc.Logout(ctx, reg.RefreshToken)

	events := env.audit.Events()
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	secrets := []string{testPassword, reg.RefreshToken, reg.AccessToken, reg.User.PasswordDigest}
	for _, ev := range events {
		if ev.Meta[MetaIP] != "198.51.100.4" {
			t.Fatalf("%s: missing ip metadata: %+v", ev.Name, ev.Meta)
		}
		for k, v := range ev.Meta {
			for _, s := range secrets {
				if strings.Contains(v, s) {
					t.Fatalf("%s: secret leaked in meta %q", ev.Name, k)
				}
			}
		}
	}
}

func TestAsyncAuditDeliversOnClose(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Audit.Async = true
		c.Audit.DropIfFull = false
		c.Audit.BufferSize = 16
	})
	env.register(t)
	env.login(t)
	env.svc.Close()

	if n := len(env.audit.Named(EventUserLogin)); n != 1 {
		t.Fatalf("expected login event delivered, got %d", n)
	}
	if env.svc.AuditDropped() != 0 {
		t.Fatalf("expected no drops, got %d", env.svc.AuditDropped())
	}
}

func TestAuditSinkPanicDoesNotFailOperation(t *testing.T) {
	env := newTestEnv(t)
	env.svc.audit.sink = MultiSink{panicSink{}}

	if _, err := env.svc.Register(context.Background(), testEmail, testPassword, ""); err != nil {
		t.Fatalf("register with panicking sink: %v", err)
	}
}

type panicSink struct{}

func (panicSink) Record(context.Context, string, string, map[string]string) { panic("sink down") }
