package session

import "time"

// State is the lifecycle position of a session at a point in time.
type State uint8

const (
	StateActive State = iota
	StateExpired
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Session is a persisted refresh-token record.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	Revoked   bool
	ClientIP  string
	UserAgent string

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State reports the session state at now. Revocation wins over expiry.
func (s Session) State(now time.Time) State {
	if s.Revoked {
		return StateRevoked
	}
	if !s.ExpiresAt.After(now) {
		return StateExpired
	}
	return StateActive
}

// Active reports whether the session is usable at now.
func (s Session) Active(now time.Time) bool {
	return s.State(now) == StateActive
}
