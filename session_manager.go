package authcore

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// SessionManager owns refresh sessions: creation, the refresh state machine
// with replay detection, revocation and housekeeping. It is the only writer
// of the revoked flag.
//
// Session states are Active, Expired and Revoked; Expired and Revoked are
// terminal. Presenting the token of a revoked session is treated as theft and
// revokes every session of the owner.
type SessionManager struct {
	sessions session.Store
	users    user.Store
	audit    auditor
	metrics  *Metrics
	logger   *slog.Logger

	horizon time.Duration
	rotate  bool
	now     func() time.Time
}

func newSessionManager(sessions session.Store, users user.Store, cfg SessionConfig, a auditor, m *Metrics, logger *slog.Logger, now func() time.Time) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		audit:    a,
		metrics:  m,
		logger:   logger,
		horizon:  cfg.Horizon,
		rotate:   cfg.RotateOnRefresh,
		now:      now,
	}
}

// CreateSession persists a new session for userID and returns it with the
// plaintext refresh token. Only the token hash is stored.
func (m *SessionManager) CreateSession(ctx context.Context, userID string) (session.Session, string, error) {
	const op = "session.create"

	now := m.now()
	id, err := internal.NewSessionID(now)
	if err != nil {
		return session.Session{}, "", m.fail(ctx, op, err)
	}
	token, err := internal.NewRefreshToken()
	if err != nil {
		return session.Session{}, "", m.fail(ctx, op, err)
	}

	s := session.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: internal.HashHex(token),
		ClientIP:  clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		ExpiresAt: now.Add(m.horizon),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return session.Session{}, "", m.fail(ctx, op, err)
	}

	m.metrics.Inc(MetricSessionCreated)
	return s, token, nil
}

// Rotate resolves a presented refresh token.
//
//   - unknown or malformed token: ErrInvalidRefreshToken
//   - token already rotated away: every session of the owner is revoked, ErrTokenReuseDetected
//   - revoked session: every session of the owner is revoked, ErrTokenReuseDetected
//   - expired session: the session is revoked, ErrRefreshTokenExpired
//   - owner no longer exists: the session is revoked, ErrUserInvalid
//
// Otherwise the session and its owner are returned. With rotation enabled the
// stored hash is swapped for a new token; losing that swap to a concurrent
// caller counts as reuse.
func (m *SessionManager) Rotate(ctx context.Context, presented string) (*Rotation, error) {
	const op = "session.rotate"

	hash, err := internal.HashRefreshToken(presented)
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		return nil, ErrInvalidRefreshToken
	}

	s, err := m.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			m.metrics.Inc(MetricRefreshFailure)
			return nil, ErrInvalidRefreshToken
		}
		return nil, m.fail(ctx, op, err)
	}

	now := m.now()
	if s.TokenHash != hash {
		return nil, m.reuseDetected(ctx, s, now)
	}
	switch s.State(now) {
	case session.StateRevoked:
		return nil, m.reuseDetected(ctx, s, now)
	case session.StateExpired:
		if _, err := m.sessions.Revoke(ctx, s.ID, "", now); err != nil {
			return nil, m.fail(ctx, op, err)
		}
		m.metrics.Inc(MetricRefreshExpired)
		m.audit.record(ctx, EventRefreshExpired, s.UserID, map[string]string{MetaSessionID: s.ID})
		return nil, ErrRefreshTokenExpired
	}

	u, err := m.users.GetByID(ctx, s.UserID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, m.fail(ctx, op, err)
		}
		if _, err := m.sessions.Revoke(ctx, s.ID, "", now); err != nil {
			return nil, m.fail(ctx, op, err)
		}
		m.metrics.Inc(MetricRefreshUserInvalid)
		m.audit.record(ctx, EventRefreshUserInvalid, s.UserID, map[string]string{
			MetaSessionID: s.ID,
			MetaReason:    "user_missing",
		})
		return nil, ErrUserInvalid
	}

	rot := &Rotation{Session: s, User: u}
	if !m.rotate {
		return rot, nil
	}

	next, err := internal.NewRefreshToken()
	if err != nil {
		return nil, m.fail(ctx, op, err)
	}
	nextHash := internal.HashHex(next)
	swapped, err := m.sessions.ReplaceToken(ctx, s.ID, hash, nextHash, now)
	if err != nil {
		return nil, m.fail(ctx, op, err)
	}
	if !swapped {
		return nil, m.reuseDetected(ctx, s, now)
	}

	m.metrics.Inc(MetricRefreshRotated)
	rot.Session.TokenHash = nextHash
	rot.Session.UpdatedAt = now
	rot.RefreshToken = next
	return rot, nil
}

func (m *SessionManager) reuseDetected(ctx context.Context, s session.Session, now time.Time) error {
	const op = "session.reuse"

	n, err := m.sessions.RevokeAllForUser(ctx, s.UserID, now)
	if err != nil {
		// Reuse is reported only after the cascade is applied.
		return m.fail(ctx, op, err)
	}

	m.metrics.Inc(MetricRefreshReuseDetected)
	m.metrics.Add(MetricSessionRevoked, uint64(n))
	m.logger.Warn("refresh token reuse detected",
		slog.String("user_id", s.UserID),
		slog.String("session_id", s.ID),
		slog.Int("revoked", n),
	)
	m.audit.record(ctx, EventTokenReuseDetected, s.UserID, map[string]string{
		MetaSessionID: s.ID,
		MetaCount:     strconv.Itoa(n),
		MetaOutcome:   outcome(false),
	})
	return ErrTokenReuseDetected
}

// Revoke marks one session revoked. When ownerUserID is non-empty the session
// must belong to that user. It reports whether anything changed.
func (m *SessionManager) Revoke(ctx context.Context, sessionID, ownerUserID string) (bool, error) {
	changed, err := m.sessions.Revoke(ctx, sessionID, ownerUserID, m.now())
	if err != nil {
		return false, m.fail(ctx, "session.revoke", err)
	}
	if changed {
		m.metrics.Inc(MetricSessionRevoked)
	}
	return changed, nil
}

// RevokeAll revokes every live session of userID and returns the count.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := m.sessions.RevokeAllForUser(ctx, userID, m.now())
	if err != nil {
		return 0, m.fail(ctx, "session.revoke_all", err)
	}
	m.metrics.Inc(MetricSessionRevokeAll)
	m.metrics.Add(MetricSessionRevoked, uint64(n))
	return n, nil
}

// ListActive returns the sessions of userID that are neither revoked nor
// expired, newest first.
func (m *SessionManager) ListActive(ctx context.Context, userID string) ([]session.Session, error) {
	all, err := m.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, m.fail(ctx, "session.list", err)
	}

	now := m.now()
	active := make([]session.Session, 0, len(all))
	for _, s := range all {
		if s.Active(now) {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID > active[j].ID
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// SweepExpired deletes sessions whose expiry has passed.
func (m *SessionManager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, m.fail(ctx, "session.sweep", err)
	}
	m.metrics.Add(MetricSweepDeleted, uint64(n))
	return n, nil
}

func (m *SessionManager) fail(ctx context.Context, op string, err error) error {
	m.logger.ErrorContext(ctx, "session store failure",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return internalError(op, err)
}
