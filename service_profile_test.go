package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authcore/jwt"
)

func strPtr(s string) *string { return &s }

func TestValidateAccessToken(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	id, ok := env.svc.ValidateAccessToken(ctx, reg.AccessToken)
	if !ok {
		t.Fatal("expected fresh token to validate")
	}
	if id.UserID != reg.User.ID || id.Email != testEmail {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.ExpiresAt.Equal(env.clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", id.ExpiresAt)
	}

	other := testConfig()
	other.JWT.Secret = []byte("ffffffffffffffffffffffffffffffff")
	codec, err := jwt.NewCodec(other.JWT.codecConfig())
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	wrongKey, err := codec.WithClock(env.clock.Now).SignAccess(reg.User.ID, testEmail)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	now := env.clock.Now()
	refreshTyped, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, jwt.AccessClaims{
		UID:  reg.User.ID,
		Type: "refresh",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   reg.User.ID,
			Issuer:    "authcore",
			Audience:  gjwt.ClaimStrings{"authcore-clients"},
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		},
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign raw: %v", err)
	}

	for name, token := range map[string]string{
		"wrong key":     wrongKey,
		"wrong type":    refreshTyped,
		"malformed":     "not.a.jwt",
		"empty":         "",
		"refresh token": reg.RefreshToken,
	} {
		if _, ok := env.svc.ValidateAccessToken(ctx, token); ok {
			t.Fatalf("%s: expected invalid", name)
		}
	}

	env.clock.Advance(10*time.Minute + time.Second)
	if _, ok := env.svc.ValidateAccessToken(ctx, reg.AccessToken); ok {
		t.Fatal("expected expired token to be invalid")
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, "bob@example.com", testPassword, "Bob"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	_, err := env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{Email: strPtr(" BOB@example.com")})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	_, err = env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{Email: strPtr("nope")})
	if KindOf(err) != KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}

	updated, err := env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{
		Email:       strPtr("Alice.New@Example.com"),
		DisplayName: strPtr("  <b>Alice</b> "),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "alice.new@example.com" || updated.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", updated)
	}

	events := env.audit.Named(EventProfileUpdated)
	if len(events) != 1 || events[0].Meta["fields"] != "email,display_name" {
		t.Fatalf("unexpected profile audit: %+v", events)
	}

	same, err := env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{DisplayName: strPtr("Alice")})
	if err != nil || same.DisplayName != "Alice" {
		t.Fatalf("no-op update failed: %+v %v", same, err)
	}
	if n := len(env.audit.Named(EventProfileUpdated)); n != 1 {
		t.Fatalf("no-op update must not audit, got %d events", n)
	}

	literal, err := env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{DisplayName: strPtr("Tom & Jerry O'Brien")})
	if err != nil || literal.DisplayName != "Tom & Jerry O'Brien" {
		t.Fatalf("expected ampersand and apostrophe kept literal: %+v %v", literal, err)
	}

	if _, err := env.svc.Login(ctx, "alice.new@example.com", testPassword); err != nil {
		t.Fatalf("login with new email: %v", err)
	}

	long := strings.Repeat("é", 150)
	updated, err = env.svc.UpdateProfile(ctx, reg.User.ID, ProfileUpdate{DisplayName: &long})
	if err != nil {
		t.Fatalf("update long name: %v", err)
	}
	if got := len([]rune(updated.DisplayName)); got != 100 {
		t.Fatalf("expected name capped at 100 runes, got %d", got)
	}

	if _, err := env.svc.GetProfile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRevokeSessionOwnership(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	ctx := context.Background()

	bob, err := env.svc.Register(ctx, "bob@example.com", testPassword, "")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	if _, err := env.svc.RevokeSession(ctx, reg.User.ID, bob.Session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
	if _, err := env.svc.RevokeSession(ctx, reg.User.ID, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for missing session, got %v", err)
	}

	changed, err := env.svc.RevokeSession(ctx, reg.User.ID, reg.Session.ID)
	if err != nil || !changed {
		t.Fatalf("expected revoke, changed=%v err=%v", changed, err)
	}
	changed, err = env.svc.RevokeSession(ctx, reg.User.ID, reg.Session.ID)
	if err != nil || changed {
		t.Fatalf("expected second revoke to be a no-op, changed=%v err=%v", changed, err)
	}

	if n := env.activeSessions(t, bob.User.ID); n != 1 {
		t.Fatalf("bob's session must survive, got %d active", n)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)
	env.clock.Advance(time.Second)
	env.login(t)
	env.clock.Advance(time.Second)
	env.login(t)
	ctx := context.Background()

	n, err := env.svc.RevokeAllSessions(ctx, reg.User.ID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 revoked, n=%d err=%v", n, err)
	}
	n, err = env.svc.RevokeAllSessions(ctx, reg.User.ID)
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent revoke-all, n=%d err=%v", n, err)
	}
	if got := env.svc.metrics.Value(MetricSessionRevoked); got != 3 {
		t.Fatalf("expected 3 revoked sessions counted, got %d", got)
	}

	events := env.audit.Named(EventSessionsRevokedAll)
	if len(events) != 2 {
		t.Fatalf("expected one event per revoke-all call, got %d", len(events))
	}
	if events[0].Meta[MetaCount] != "3" || events[0].Meta[MetaOutcome] != "success" {
		t.Fatalf("unexpected revoke-all event: %+v", events[0])
	}
}

func TestGetSessionsHidesExpired(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t)

	env.clock.Advance(6 * 24 * time.Hour)
	env.login(t)
	if n := env.activeSessions(t, reg.User.ID); n != 2 {
		t.Fatalf("expected 2 active, got %d", n)
	}

	env.clock.Advance(24 * time.Hour)
	if n := env.activeSessions(t, reg.User.ID); n != 1 {
		t.Fatalf("expected registration session to have expired, got %d active", n)
	}
}
