package session

import (
	"errors"
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.Add(time.Second)}
	if s.State(now) != StateActive {
		t.Fatalf("expected active, got %s", s.State(now))
	}

	s.ExpiresAt = now
	if s.State(now) != StateExpired {
		t.Fatalf("expected expiry at boundary, got %s", s.State(now))
	}

	s.Revoked = true
	if s.State(now) != StateRevoked {
		t.Fatalf("expected revoked to win over expired, got %s", s.State(now))
	}
}

func TestDecodeRejectsCorruptFields(t *testing.T) {
	valid := map[string]string{
		fieldVersion:   "1",
		fieldUserID:    "u1",
		fieldToken:     "h",
		fieldRevoked:   "0",
		fieldExpiresAt: "1700000000000",
		fieldCreatedAt: "1700000000000",
		fieldUpdatedAt: "1700000000000",
	}
	if _, err := Decode("s1", valid); err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}

	cases := map[string]func(map[string]string){
		"version":  func(m map[string]string) { m[fieldVersion] = "9" },
		"user":     func(m map[string]string) { delete(m, fieldUserID) },
		"revoked":  func(m map[string]string) { m[fieldRevoked] = "yes" },
		"expires":  func(m map[string]string) { m[fieldExpiresAt] = "soon" },
		"missing":  func(m map[string]string) { delete(m, fieldCreatedAt) },
		"no token": func(m map[string]string) { m[fieldToken] = "" },
	}
	for name, mutate := range cases {
		fields := make(map[string]string, len(valid))
		for k, v := range valid {
			fields[k] = v
		}
		mutate(fields)
		if _, err := Decode("s1", fields); !errors.Is(err, ErrSessionCorrupt) {
			t.Fatalf("%s: expected ErrSessionCorrupt, got %v", name, err)
		}
	}
}

func TestEncodeRequiresIdentity(t *testing.T) {
	if _, err := Encode(Session{TokenHash: "h"}); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected missing user id rejected, got %v", err)
	}
	if _, err := Encode(Session{UserID: "u"}); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected missing token hash rejected, got %v", err)
	}
}

// FuzzSessionDecode feeds arbitrary field values to the decoder. It must
// never panic.
func FuzzSessionDecode(f *testing.F) {
	f.Add("1", "u1", "h", "0", "1700000000000")
	f.Add("", "", "", "", "")
	f.Add("2", "u", "h", "1", "-1")

	f.Fuzz(func(t *testing.T, version, uid, tok, rev, ts string) {
		_, _ = Decode("s", map[string]string{
			fieldVersion:   version,
			fieldUserID:    uid,
			fieldToken:     tok,
			fieldRevoked:   rev,
			fieldExpiresAt: ts,
			fieldCreatedAt: ts,
			fieldUpdatedAt: ts,
		})
	})
}
