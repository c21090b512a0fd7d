package user

import (
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxEmailLength       = 254
	maxDisplayNameLength = 100
)

var displayNamePolicy = bluemonday.StrictPolicy()

// NormalizeEmail returns the canonical form used for lookup and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether a normalized email is syntactically acceptable.
func ValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// SanitizeDisplayName strips markup and surrounding whitespace and caps the
// result at 100 runes. The result is plain text: entities the policy emits
// are decoded, so callers escape on output.
func SanitizeDisplayName(name string) string {
	clean := strings.TrimSpace(html.UnescapeString(displayNamePolicy.Sanitize(name)))
	if utf8.RuneCountInString(clean) <= maxDisplayNameLength {
		return clean
	}
	runes := []rune(clean)
	return strings.TrimSpace(string(runes[:maxDisplayNameLength]))
}
