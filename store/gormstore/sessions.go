package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MrEthical07/authcore/session"
)

// SessionStore implements session.Store.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore returns a store on db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	row := fromSession(sess)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return sessionErr(err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	return s.take(ctx, "id = ?", id)
}

// GetByTokenHash matches the current hash first, then superseded ones.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	sess, err := s.take(ctx, "token_hash = ?", tokenHash)
	if !errors.Is(err, session.ErrNotFound) {
		return sess, err
	}

	var old supersededTokenRow
	err = s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&old).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, sessionErr(err)
	}
	return s.take(ctx, "id = ?", old.SessionID)
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]session.Session, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, sessionErr(err)
	}
	out := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toSession())
	}
	return out, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id, ownerUserID string, now time.Time) (bool, error) {
	q := s.db.WithContext(ctx).Model(&sessionRow{}).Where("id = ? AND revoked = ?", id, false)
	if ownerUserID != "" {
		q = q.Where("user_id = ?", ownerUserID)
	}
	res := q.Updates(map[string]any{"revoked": true, "updated_at": now.UTC()})
	if res.Error != nil {
		return false, sessionErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "updated_at": now.UTC()})
	if res.Error != nil {
		return 0, sessionErr(res.Error)
	}
	return int(res.RowsAffected), nil
}

// ReplaceToken swaps the hash and records the old one in one transaction.
func (s *SessionStore) ReplaceToken(ctx context.Context, id, oldHash, newHash string, now time.Time) (bool, error) {
	swapped := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&sessionRow{}).
			Where("id = ? AND token_hash = ? AND revoked = ?", id, oldHash, false).
			Updates(map[string]any{"token_hash": newHash, "updated_at": now.UTC()})
		if res.Error != nil || res.RowsAffected != 1 {
			return res.Error
		}
		if err := tx.Create(&supersededTokenRow{TokenHash: oldHash, SessionID: id}).Error; err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, sessionErr(err)
	}
	return swapped, nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&sessionRow{}).Select("id").Where("expires_at <= ?", now.UTC())
		if err := tx.Where("session_id IN (?)", expired).Delete(&supersededTokenRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at <= ?", now.UTC()).Delete(&sessionRow{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, sessionErr(err)
	}
	return int(deleted), nil
}

func (s *SessionStore) take(ctx context.Context, query, arg string) (session.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, sessionErr(err)
	}
	return row.toSession(), nil
}

func sessionErr(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}
