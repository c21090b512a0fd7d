package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/user"
)

type fakeValidator map[string]authcore.Identity

func (f fakeValidator) ValidateAccessToken(_ context.Context, token string) (authcore.Identity, bool) {
	id, ok := f[token]
	return id, ok
}

type fakeProfiles map[string]user.User

func (f fakeProfiles) GetProfile(_ context.Context, id string) (user.User, error) {
	u, ok := f[id]
	if !ok {
		return user.User{}, errors.New("missing")
	}
	return u, nil
}

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAccess(t *testing.T) {
	v := fakeValidator{"good": {UserID: "u1", Email: "a@x.com"}}
	var seen authcore.Identity
	h := RequireAccess(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	if rec := serve(h, "Bearer good"); rec.Code != http.StatusNoContent || seen.UserID != "u1" {
		t.Fatalf("expected pass with identity, got %d %+v", rec.Code, seen)
	}
	if rec := serve(h, "bearer good"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected case-insensitive scheme, got %d", rec.Code)
	}

	for _, authz := range []string{"", "Bearer ", "Basic good", "Bearer bad", "good"} {
		rec := serve(h, authz)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", authz, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%q: expected challenge header", authz)
		}
	}

	if rec := serve(RequireAccess(nil)(h), "Bearer good"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected nil validator to reject, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	v := fakeValidator{
		"admin": {UserID: "a"},
		"plain": {UserID: "p"},
		"off":   {UserID: "o"},
		"ghost": {UserID: "g"},
	}
	profiles := fakeProfiles{
		"a": {ID: "a", IsActive: true, IsAdmin: true},
		"p": {ID: "p", IsActive: true},
		"o": {ID: "o", IsAdmin: true},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAccess(v)(RequireAdmin(profiles)(ok))

	cases := map[string]int{
		"Bearer admin": http.StatusOK,
		"Bearer plain": http.StatusForbidden,
		"Bearer off":   http.StatusForbidden,
		"Bearer ghost": http.StatusForbidden,
		"":             http.StatusUnauthorized,
	}
	for authz, want := range cases {
		if got := serve(h, authz).Code; got != want {
			t.Fatalf("%q: expected %d, got %d", authz, want, got)
		}
	}

	if got := serve(RequireAdmin(profiles)(ok), "").Code; got != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", got)
	}
}
