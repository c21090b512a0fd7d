package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MrEthical07/authcore/user"
)

// UserStore implements user.Store.
type UserStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserStore returns a store on db. now defaults to time.Now.
func NewUserStore(db *gorm.DB, now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{db: db, now: now}
}

func (s *UserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	row := fromUser(u)
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return user.User{}, user.ErrEmailConflict
	}
	if err != nil {
		return user.User{}, storeErr(err)
	}
	return row.toUser(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	return s.first(s.db.WithContext(ctx), "id = ?", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.first(s.db.WithContext(ctx), "email = ?", email)
}

func (s *UserStore) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	var out user.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).Where("id = ?", id).Updates(patchColumns(p, s.now().UTC()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return user.ErrNotFound
		}
		var err error
		out, err = s.first(tx, "id = ?", id)
		return err
	})
	switch {
	case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrStoreUnavailable):
		return user.User{}, err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return user.User{}, user.ErrEmailConflict
	case err != nil:
		return user.User{}, storeErr(err)
	}
	return out, nil
}

// RecordLoginFailure increments the counter and applies the lock in one
// UPDATE. Every SET expression reads the pre-update row.
func (s *UserStore) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (user.User, error) {
	var out user.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trips := "? > 0 AND failed_login_attempts + 1 >= ?"
		res := tx.Model(&userRow{}).Where("id = ?", id).Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"is_locked":             gorm.Expr("CASE WHEN "+trips+" THEN ? ELSE is_locked END", threshold, threshold, true),
			"locked_until":          gorm.Expr("CASE WHEN "+trips+" THEN ? ELSE locked_until END", threshold, threshold, lockUntil.UTC()),
			"updated_at":            s.now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return user.ErrNotFound
		}
		var err error
		out, err = s.first(tx, "id = ?", id)
		return err
	})
	switch {
	case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrStoreUnavailable):
		return user.User{}, err
	case err != nil:
		return user.User{}, storeErr(err)
	}
	return out, nil
}

func (s *UserStore) first(db *gorm.DB, query string, arg string) (user.User, error) {
	var row userRow
	err := db.Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, storeErr(err)
	}
	return row.toUser(), nil
}

func patchColumns(p user.Patch, now time.Time) map[string]any {
	cols := map[string]any{"updated_at": now}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.DisplayName != nil {
		cols["display_name"] = *p.DisplayName
	}
	if p.PasswordDigest != nil {
		cols["password_digest"] = *p.PasswordDigest
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	if p.IsLocked != nil {
		cols["is_locked"] = *p.IsLocked
	}
	if p.FailedLoginAttempts != nil {
		cols["failed_login_attempts"] = *p.FailedLoginAttempts
	}
	if p.ClearLockedUntil {
		cols["locked_until"] = gorm.Expr("NULL")
	} else if p.LockedUntil != nil {
		cols["locked_until"] = p.LockedUntil.UTC()
	}
	return cols
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", user.ErrStoreUnavailable, err)
}
