package authcore

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindMatching(t *testing.T) {
	wrapped := fmt.Errorf("login handler: %w", ErrAccountLocked)
	if !errors.Is(wrapped, ErrAccountLocked) {
		t.Fatal("expected wrapped sentinel to match")
	}
	if errors.Is(wrapped, ErrInvalidCredentials) {
		t.Fatal("different kinds must not match")
	}
	if KindOf(wrapped) != KindAccountLocked {
		t.Fatalf("expected KindAccountLocked, got %s", KindOf(wrapped))
	}
}

func TestKindOfForeignAndNil(t *testing.T) {
	if KindOf(nil) != KindUnknown {
		t.Fatal("nil must report KindUnknown")
	}
	if KindOf(errors.New("redis down")) != KindInternal {
		t.Fatal("foreign errors must report KindInternal")
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:6379: connection refused")
	err := internalError("session.create", cause)

	if !errors.Is(err, ErrInternal) {
		t.Fatal("expected ErrInternal kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause reachable through Unwrap")
	}
	if got := err.Error(); got != "session.create: internal error" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInvalidInputMessage(t *testing.T) {
	err := invalidInput("register", "email")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected ErrInvalidInput kind")
	}
	if got := err.Error(); got != "register: invalid input: email" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrorKindStrings(t *testing.T) {
	if KindTokenReuseDetected.String() != "token_reuse_detected" {
		t.Fatalf("unexpected name %q", KindTokenReuseDetected.String())
	}
	if ErrorKind(200).String() != "unknown" {
		t.Fatal("out of range kinds must report unknown")
	}
}
