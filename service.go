package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// Service is the entry point for identity operations. Build one with
// [Builder] at process start and share it; it holds no per-request state.
type Service struct {
	config      Config
	users       user.Store
	sessions    *SessionManager
	codec       *jwt.Codec
	hasher      PasswordHasher
	emailBucket *limiters.EmailBucket
	lockout     limiters.LockoutPolicy
	audit       auditor
	asyncAudit  *AsyncAuditSink
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Sessions exposes the session manager, mainly for the sweeper.
func (s *Service) Sessions() *SessionManager { return s.sessions }

// Config returns a copy of the active configuration.
func (s *Service) Config() Config { return cloneConfig(s.config) }

// Register creates an account and its first session.
func (s *Service) Register(ctx context.Context, email, plaintext, displayName string) (*AuthResult, error) {
	const op = "register"

	email = user.NormalizeEmail(email)
	if !user.ValidEmail(email) {
		return nil, invalidInput(op, "email")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.metrics.Inc(MetricRegisterDuplicate)
		return nil, ErrUserExists
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, s.fail(ctx, op, err)
	}

	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return nil, invalidInput(op, "password length")
		}
		return nil, s.fail(ctx, op, err)
	}

	now := s.now()
	created, err := s.users.Create(ctx, user.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: digest,
		DisplayName:    user.SanitizeDisplayName(displayName),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailConflict) {
			s.metrics.Inc(MetricRegisterDuplicate)
			return nil, ErrUserExists
		}
		return nil, s.fail(ctx, op, err)
	}

	res, err := s.issue(ctx, op, created)
	if err != nil {
		return nil, err
	}
	s.metrics.Inc(MetricRegisterSuccess)
	s.audit.record(ctx, EventUserRegistered, created.ID, map[string]string{MetaSessionID: res.Session.ID})
	return res, nil
}

// Login verifies credentials and opens a new session.
//
// An expired lock is cleared on the next attempt. A failure that reaches the
// threshold locks the account but still reports ErrInvalidCredentials; the
// lock surfaces as ErrAccountLocked from the following attempt.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	const op = "login"

	email = user.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, s.fail(ctx, op, err)
		}
		s.recordUnknownEmail(ctx, email)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if u.IsLocked {
		if u.LockActive(now) {
			s.metrics.Inc(MetricLoginLocked)
			s.audit.record(ctx, EventLoginFailed, u.ID, map[string]string{MetaReason: "locked"})
			return nil, ErrAccountLocked
		}
		u, err = s.users.Update(ctx, u.ID, user.ClearLock())
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
		s.metrics.Inc(MetricAccountUnlocked)
		s.audit.record(ctx, EventAccountUnlocked, u.ID, map[string]string{MetaOutcome: outcome(true)})
	}

	if !u.IsActive {
		s.metrics.Inc(MetricLoginInactive)
		s.audit.record(ctx, EventLoginFailed, u.ID, map[string]string{MetaReason: "inactive"})
		return nil, ErrAccountInactive
	}

	ok, err := s.verify(plaintext, u.PasswordDigest)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if !ok {
		return nil, s.recordFailure(ctx, u, now)
	}

	if u.FailedLoginAttempts > 0 {
		if u, err = s.users.Update(ctx, u.ID, user.ResetFailures()); err != nil {
			return nil, s.fail(ctx, op, err)
		}
	}
	u = s.maybeRehash(ctx, u, plaintext)

	res, err := s.issue(ctx, op, u)
	if err != nil {
		return nil, err
	}
	s.metrics.Inc(MetricLoginSuccess)
	s.audit.record(ctx, EventUserLogin, u.ID, map[string]string{
		MetaSessionID: res.Session.ID,
		MetaOutcome:   outcome(true),
	})
	return res, nil
}

func (s *Service) recordFailure(ctx context.Context, u user.User, now time.Time) error {
	updated, err := s.users.RecordLoginFailure(ctx, u.ID, s.lockout.Threshold, s.lockout.LockUntil(now))
	if err != nil {
		return s.fail(ctx, "login.failure", err)
	}

	s.metrics.Inc(MetricLoginFailure)
	s.audit.record(ctx, EventLoginFailed, u.ID, map[string]string{
		MetaReason: "bad_password",
		MetaCount:  strconv.Itoa(updated.FailedLoginAttempts),
	})

	if updated.LockActive(now) && s.lockout.Tripped(updated.FailedLoginAttempts) {
		s.metrics.Inc(MetricAccountLocked)
		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", u.ID),
			slog.Int("failures", updated.FailedLoginAttempts),
		)
		s.audit.record(ctx, EventAccountLocked, u.ID, map[string]string{
			MetaCount:   strconv.Itoa(updated.FailedLoginAttempts),
			MetaReason:  "failed_attempts",
			MetaOutcome: outcome(false),
		})
	}
	return ErrInvalidCredentials
}

func (s *Service) recordUnknownEmail(ctx context.Context, email string) {
	s.metrics.Inc(MetricLoginFailure)
	s.audit.record(ctx, EventLoginFailed, "", map[string]string{MetaReason: "unknown_email"})

	if _, err := s.emailBucket.RecordFailure(ctx, internal.HashHex(email)); err != nil {
		s.logger.WarnContext(ctx, "email bucket increment failed",
			slog.String("op", "login.unknown_email"),
			slog.Any("error", err),
		)
	}
}

// verify treats over-long input as a mismatch so it never reaches argon2.
func (s *Service) verify(plaintext, digest string) (bool, error) {
	ok, err := s.hasher.Verify(plaintext, digest)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return false, nil
	}
	return ok, err
}

func (s *Service) maybeRehash(ctx context.Context, u user.User, plaintext string) user.User {
	if !s.config.Password.UpgradeOnLogin {
		return u
	}
	checker, ok := s.hasher.(upgradeChecker)
	if !ok {
		return u
	}
	needs, err := checker.NeedsUpgrade(u.PasswordDigest)
	if err != nil || !needs {
		return u
	}

	digest, err := s.hasher.Hash(plaintext)
	if err == nil {
		var updated user.User
		if updated, err = s.users.Update(ctx, u.ID, user.Patch{PasswordDigest: &digest}); err == nil {
			s.metrics.Inc(MetricPasswordRehashed)
			return updated
		}
	}
	s.logger.WarnContext(ctx, "password rehash failed",
		slog.String("op", "login.rehash"),
		slog.String("user_id", u.ID),
		slog.Any("error", err),
	)
	return u
}

func (s *Service) issue(ctx context.Context, op string, u user.User) (*AuthResult, error) {
	sess, refresh, err := s.sessions.CreateSession(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	access, exp, err := s.signAccess(u)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return &AuthResult{
		User:            u,
		Session:         sess,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    refresh,
	}, nil
}

func (s *Service) signAccess(u user.User) (string, time.Time, error) {
	token, err := s.codec.SignAccess(u.ID, u.Email)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().Add(s.codec.AccessTTL()), nil
}

// RefreshToken exchanges a refresh token for a new access token. The owner
// must still be active and not locked; otherwise the session is revoked and
// ErrUserInvalid is returned.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	const op = "refresh"

	rot, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !rot.User.IsActive || rot.User.LockActive(now) {
		if _, err := s.sessions.Revoke(ctx, rot.Session.ID, ""); err != nil {
			return nil, err
		}
		reason := "inactive"
		if rot.User.IsActive {
			reason = "locked"
		}
		s.metrics.Inc(MetricRefreshUserInvalid)
		s.audit.record(ctx, EventRefreshUserInvalid, rot.User.ID, map[string]string{
			MetaSessionID: rot.Session.ID,
			MetaReason:    reason,
		})
		return nil, ErrUserInvalid
	}

	access, exp, err := s.signAccess(rot.User)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	s.metrics.Inc(MetricRefreshSuccess)
	return &RefreshResult{
		SessionID:       rot.Session.ID,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    rot.RefreshToken,
	}, nil
}

// Logout revokes the session behind refreshToken if there is one. It never
// fails from the caller's point of view; backend errors are logged.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	hash, err := internal.HashRefreshToken(refreshToken)
	if err != nil {
		return
	}

	sess, err := s.sessions.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.logger.WarnContext(ctx, "logout lookup failed", slog.String("op", "logout"), slog.Any("error", err))
		}
		return
	}
	if sess.TokenHash != hash {
		return
	}

	changed, err := s.sessions.Revoke(ctx, sess.ID, "")
	if err != nil {
		s.logger.WarnContext(ctx, "logout revoke failed", slog.String("op", "logout"), slog.Any("error", err))
		return
	}
	s.metrics.Inc(MetricLogout)
	if changed {
		s.audit.record(ctx, EventLogout, sess.UserID, map[string]string{
			MetaSessionID: sess.ID,
			MetaOutcome:   outcome(true),
		})
	}
}

// ChangePassword replaces the password after checking the current one and
// revokes every session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "change_password"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.fail(ctx, op, err)
	}

	ok, err := s.verify(currentPassword, u.PasswordDigest)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	if !ok {
		s.metrics.Inc(MetricPasswordChangeInvalidOld)
		s.audit.record(ctx, EventPasswordChanged, u.ID, map[string]string{
			MetaOutcome: outcome(false),
			MetaReason:  "invalid_current_password",
		})
		return ErrInvalidPassword
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return invalidInput(op, "password length")
		}
		return s.fail(ctx, op, err)
	}
	if _, err := s.users.Update(ctx, u.ID, user.Patch{PasswordDigest: &digest}); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.fail(ctx, op, err)
	}

	n, err := s.sessions.RevokeAll(ctx, u.ID)
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricPasswordChangeSuccess)
	s.audit.record(ctx, EventPasswordChanged, u.ID, map[string]string{
		MetaOutcome: outcome(true),
		MetaCount:   strconv.Itoa(n),
	})
	return nil
}

// Close flushes the async audit queue, if any.
func (s *Service) Close() {
	s.asyncAudit.Close()
}

// MetricsSnapshot returns a copy of the counters for exporters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns how many audit events the async queue dropped.
func (s *Service) AuditDropped() uint64 {
	return s.asyncAudit.Dropped()
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "authcore operation failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return internalError(op, err)
}
