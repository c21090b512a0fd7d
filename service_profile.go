package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// ValidateAccessToken checks an access token without touching any store.
// Every failure, including malformed input, yields ok=false.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (Identity, bool) {
	start := time.Now()
	claims, err := s.codec.Verify(token)
	s.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		s.logger.DebugContext(ctx, "access token rejected", slog.Any("error", err))
		return Identity{}, false
	}

	id := Identity{UserID: claims.UID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, true
}

func (s *Service) GetProfile(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, s.fail(ctx, "profile.get", err)
	}
	return u, nil
}

// UpdateProfile applies upd. A new email is normalized and must not belong
// to another account; display names are stripped of markup.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (user.User, error) {
	const op = "profile.update"

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	var patch user.Patch
	changed := make([]string, 0, 2)

	if upd.Email != nil {
		email := user.NormalizeEmail(*upd.Email)
		if !user.ValidEmail(email) {
			return user.User{}, invalidInput(op, "email")
		}
		if email != current.Email {
			other, err := s.users.GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != userID:
				return user.User{}, ErrEmailTaken
			case err != nil && !errors.Is(err, user.ErrNotFound):
				return user.User{}, s.fail(ctx, op, err)
			}
			patch.Email = &email
			changed = append(changed, "email")
		}
	}
	if upd.DisplayName != nil {
		name := user.SanitizeDisplayName(*upd.DisplayName)
		if name != current.DisplayName {
			patch.DisplayName = &name
			changed = append(changed, "display_name")
		}
	}

	if patch.Empty() {
		return current, nil
	}

	updated, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailConflict):
			return user.User{}, ErrEmailTaken
		case errors.Is(err, user.ErrNotFound):
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, s.fail(ctx, op, err)
	}

	s.audit.record(ctx, EventProfileUpdated, userID, map[string]string{
		"fields": strings.Join(changed, ","),
	})
	return updated, nil
}

// GetSessions lists the active sessions of userID, newest first.
func (s *Service) GetSessions(ctx context.Context, userID string) ([]session.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// RevokeSession revokes one of the caller's own sessions. A session that does
// not exist or belongs to someone else yields ErrSessionNotFound; one that is
// already revoked yields false and no error.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) (bool, error) {
	changed, err := s.sessions.Revoke(ctx, sessionID, userID)
	if err != nil {
		return false, err
	}
	if !changed {
		existing, err := s.sessions.sessions.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return false, ErrSessionNotFound
			}
			return false, s.fail(ctx, "session.revoke", err)
		}
		if existing.UserID != userID {
			return false, ErrSessionNotFound
		}
		return false, nil
	}

	s.audit.record(ctx, EventSessionRevoked, userID, map[string]string{
		MetaSessionID: sessionID,
		MetaOutcome:   outcome(true),
	})
	return true, nil
}

// RevokeAllSessions revokes every live session of userID.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.audit.record(ctx, EventSessionsRevokedAll, userID, map[string]string{
		MetaCount:   strconv.Itoa(n),
		MetaOutcome: outcome(true),
	})
	return n, nil
}
