package session

import (
	"fmt"
	"strconv"
	"time"
)

// CurrentSchemaVersion is written to every encoded session hash.
const CurrentSchemaVersion = 1

const (
	fieldVersion   = "v"
	fieldUserID    = "uid"
	fieldToken     = "tok"
	fieldRevoked   = "rev"
	fieldClientIP  = "ip"
	fieldUserAgent = "ua"
	fieldExpiresAt = "exp"
	fieldCreatedAt = "crt"
	fieldUpdatedAt = "upd"
)

// Encode flattens a session into Redis hash fields. Timestamps are unix
// milliseconds so Lua scripts can compare them numerically.
func Encode(s Session) (map[string]any, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrSessionCorrupt)
	}
	if s.TokenHash == "" {
		return nil, fmt.Errorf("%w: empty token hash", ErrSessionCorrupt)
	}

	return map[string]any{
		fieldVersion:   CurrentSchemaVersion,
		fieldUserID:    s.UserID,
		fieldToken:     s.TokenHash,
		fieldRevoked:   encodeBool(s.Revoked),
		fieldClientIP:  s.ClientIP,
		fieldUserAgent: s.UserAgent,
		fieldExpiresAt: s.ExpiresAt.UnixMilli(),
		fieldCreatedAt: s.CreatedAt.UnixMilli(),
		fieldUpdatedAt: s.UpdatedAt.UnixMilli(),
	}, nil
}

// Decode rebuilds a session from Redis hash fields.
func Decode(id string, fields map[string]string) (Session, error) {
	version, err := strconv.Atoi(fields[fieldVersion])
	if err != nil || version < 1 || version > CurrentSchemaVersion {
		return Session{}, fmt.Errorf("%w: unsupported schema version %q", ErrSessionCorrupt, fields[fieldVersion])
	}

	s := Session{
		ID:        id,
		UserID:    fields[fieldUserID],
		TokenHash: fields[fieldToken],
		ClientIP:  fields[fieldClientIP],
		UserAgent: fields[fieldUserAgent],
	}
	if s.UserID == "" || s.TokenHash == "" {
		return Session{}, fmt.Errorf("%w: missing identity fields", ErrSessionCorrupt)
	}

	switch fields[fieldRevoked] {
	case "0":
	case "1":
		s.Revoked = true
	default:
		return Session{}, fmt.Errorf("%w: invalid revoked flag", ErrSessionCorrupt)
	}

	if s.ExpiresAt, err = decodeMillis(fields[fieldExpiresAt]); err != nil {
		return Session{}, err
	}
	if s.CreatedAt, err = decodeMillis(fields[fieldCreatedAt]); err != nil {
		return Session{}, err
	}
	if s.UpdatedAt, err = decodeMillis(fields[fieldUpdatedAt]); err != nil {
		return Session{}, err
	}

	return s, nil
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func decodeMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrSessionCorrupt, raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}
