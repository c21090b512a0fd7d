package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

const refreshSecretSize = 32

// ErrMalformedRefreshToken is returned when a presented value cannot be a
// token minted by NewRefreshToken.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// NewSessionID returns a ULID for now. ULIDs sort by creation time.
func NewSessionID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRefreshToken returns 256 random bits, base64url without padding.
func NewRefreshToken() (string, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// HashRefreshToken validates the token shape and returns the hex SHA-256
// digest that stores index sessions by. The plaintext is never persisted.
func HashRefreshToken(token string) (string, error) {
	if len(token) != base64.RawURLEncoding.EncodedLen(refreshSecretSize) {
		return "", ErrMalformedRefreshToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshSecretSize {
		return "", ErrMalformedRefreshToken
	}
	return HashHex(token), nil
}

// HashHex returns the hex SHA-256 of v.
func HashHex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
