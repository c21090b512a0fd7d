package gormstore

import (
	"time"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

type userRow struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Email               string `gorm:"size:320;not null;uniqueIndex:uq_users_email"`
	PasswordDigest      string `gorm:"not null"`
	DisplayName         string `gorm:"size:400;not null;default:''"`
	IsActive            bool   `gorm:"not null"`
	IsLocked            bool   `gorm:"not null"`
	IsAdmin             bool   `gorm:"not null"`
	FailedLoginAttempts int    `gorm:"not null;default:0"`
	LockedUntil         *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type sessionRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:64;not null;index:idx_sessions_user_id"`
	TokenHash string    `gorm:"size:128;not null;uniqueIndex:uq_sessions_token_hash"`
	Revoked   bool      `gorm:"not null"`
	ClientIP  string    `gorm:"size:64;not null;default:''"`
	UserAgent string    `gorm:"size:512;not null;default:''"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires_at"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string { return "sessions" }

// supersededTokenRow keeps a replaced token hash resolvable to its session.
type supersededTokenRow struct {
	TokenHash string `gorm:"primaryKey;size:128"`
	SessionID string `gorm:"size:64;not null;index:idx_superseded_session_id"`
}

func (supersededTokenRow) TableName() string { return "session_superseded_tokens" }

func fromUser(u user.User) userRow {
	row := userRow{
		ID:                  u.ID,
		Email:               u.Email,
		PasswordDigest:      u.PasswordDigest,
		DisplayName:         u.DisplayName,
		IsActive:            u.IsActive,
		IsLocked:            u.IsLocked,
		IsAdmin:             u.IsAdmin,
		FailedLoginAttempts: u.FailedLoginAttempts,
		CreatedAt:           u.CreatedAt.UTC(),
		UpdatedAt:           u.UpdatedAt.UTC(),
	}
	if u.LockedUntil != nil {
		until := u.LockedUntil.UTC()
		row.LockedUntil = &until
	}
	return row
}

func (r userRow) toUser() user.User {
	u := user.User{
		ID:                  r.ID,
		Email:               r.Email,
		PasswordDigest:      r.PasswordDigest,
		DisplayName:         r.DisplayName,
		IsActive:            r.IsActive,
		IsLocked:            r.IsLocked,
		IsAdmin:             r.IsAdmin,
		FailedLoginAttempts: r.FailedLoginAttempts,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.LockedUntil != nil {
		until := r.LockedUntil.UTC()
		u.LockedUntil = &until
	}
	return u
}

func fromSession(s session.Session) sessionRow {
	return sessionRow{
		ID:        s.ID,
		UserID:    s.UserID,
		TokenHash: s.TokenHash,
		Revoked:   s.Revoked,
		ClientIP:  s.ClientIP,
		UserAgent: s.UserAgent,
		ExpiresAt: s.ExpiresAt.UTC(),
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func (r sessionRow) toSession() session.Session {
	return session.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		Revoked:   r.Revoked,
		ClientIP:  r.ClientIP,
		UserAgent: r.UserAgent,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}
