package user

import "time"

// User is a persisted credential record.
type User struct {
	ID                  string
	Email               string
	PasswordDigest      string
	DisplayName         string
	IsActive            bool
	IsLocked            bool
	IsAdmin             bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockActive reports whether a lock is in force at now. A locked record whose
// LockedUntil is unset or already passed is pending unlock.
func (u User) LockActive(now time.Time) bool {
	return u.IsLocked && u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Patch is an atomic field update. Nil fields are left untouched.
type Patch struct {
	Email               *string
	DisplayName         *string
	PasswordDigest      *string
	IsActive            *bool
	IsLocked            *bool
	FailedLoginAttempts *int
	LockedUntil         *time.Time
	ClearLockedUntil    bool
}

// ClearLock returns the patch that resets every lockout field.
func ClearLock() Patch {
	unlocked := false
	zero := 0
	return Patch{
		IsLocked:            &unlocked,
		FailedLoginAttempts: &zero,
		ClearLockedUntil:    true,
	}
}

// ResetFailures returns the patch applied after a successful login that
// followed failures.
func ResetFailures() Patch {
	zero := 0
	return Patch{FailedLoginAttempts: &zero}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Email == nil &&
		p.DisplayName == nil &&
		p.PasswordDigest == nil &&
		p.IsActive == nil &&
		p.IsLocked == nil &&
		p.FailedLoginAttempts == nil &&
		p.LockedUntil == nil &&
		!p.ClearLockedUntil
}

// Apply returns u with p applied and UpdatedAt set to now. Stores that keep
// records in memory use it so every backend shares the same patch semantics.
func Apply(u User, p Patch, now time.Time) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.PasswordDigest != nil {
		u.PasswordDigest = *p.PasswordDigest
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.IsLocked != nil {
		u.IsLocked = *p.IsLocked
	}
	if p.FailedLoginAttempts != nil {
		u.FailedLoginAttempts = *p.FailedLoginAttempts
	}
	if p.ClearLockedUntil {
		u.LockedUntil = nil
	} else if p.LockedUntil != nil {
		until := *p.LockedUntil
		u.LockedUntil = &until
	}
	u.UpdatedAt = now
	return u
}

// ApplyFailure increments the failure counter and locks the record once the
// counter reaches threshold.
func ApplyFailure(u User, threshold int, lockUntil time.Time, now time.Time) User {
	u.FailedLoginAttempts++
	if threshold > 0 && u.FailedLoginAttempts >= threshold {
		u.IsLocked = true
		until := lockUntil
		u.LockedUntil = &until
	}
	u.UpdatedAt = now
	return u
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	if u.LockedUntil != nil {
		until := *u.LockedUntil
		u.LockedUntil = &until
	}
	return u
}
