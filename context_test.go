package authcore

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClientContextCombinesValues(t *testing.T) {
	ctx := WithClientIP(context.Background(), " 203.0.113.9 ")
	ctx = WithUserAgent(ctx, "curl/8.0")

	if got := clientIPFromContext(ctx); got != "203.0.113.9" {
		t.Fatalf("expected trimmed ip, got %q", got)
	}
	if got := userAgentFromContext(ctx); got != "curl/8.0" {
		t.Fatalf("expected user agent, got %q", got)
	}

	// Overwriting one value keeps the other.
	ctx = WithClientIP(ctx, "198.51.100.1")
	if got := userAgentFromContext(ctx); got != "curl/8.0" {
		t.Fatalf("user agent lost after ip update: %q", got)
	}
}

func TestClientContextEmpty(t *testing.T) {
	if clientIPFromContext(context.Background()) != "" || userAgentFromContext(context.Background()) != "" {
		t.Fatal("expected empty values without metadata")
	}
}

func TestWithUserAgentTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("a", maxUserAgentBytes-1) + "é" + "tail"
	got := userAgentFromContext(WithUserAgent(context.Background(), long))

	if len(got) > maxUserAgentBytes {
		t.Fatalf("expected at most %d bytes, got %d", maxUserAgentBytes, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if got != strings.Repeat("a", maxUserAgentBytes-1) {
		t.Fatalf("unexpected truncation result of length %d", len(got))
	}
}
