package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/user"
)

const userColumns = `id, email, password_digest, display_name, is_active, is_locked, is_admin,
	failed_login_attempts, locked_until, created_at, updated_at`

// UserStore implements user.Store on the users table.
type UserStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewUserStore returns a store bound to pool. now defaults to time.Now.
func NewUserStore(pool *pgxpool.Pool, now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{pool: pool, now: now}
}

func (s *UserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (
			id, email, password_digest, display_name, is_active, is_locked, is_admin,
			failed_login_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+userColumns,
		u.ID, u.Email, u.PasswordDigest, u.DisplayName, u.IsActive, u.IsLocked, u.IsAdmin,
		u.FailedLoginAttempts, u.LockedUntil, u.CreatedAt, u.UpdatedAt,
	)
	created, err := scanUser(row)
	if isUniqueViolation(err, "") {
		return user.User{}, user.ErrEmailConflict
	}
	if err != nil {
		return user.User{}, unavailable(user.ErrStoreUnavailable, err)
	}
	return created, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Update applies p in one statement. An empty patch only refreshes updated_at.
func (s *UserStore) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	sets, args := patchAssignments(p)
	args = append(args, s.now(), id)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)-1))

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + userColumns

	updated, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return user.User{}, user.ErrNotFound
	case isUniqueViolation(err, "uq_users_email"):
		return user.User{}, user.ErrEmailConflict
	case err != nil:
		return user.User{}, unavailable(user.ErrStoreUnavailable, err)
	}
	return updated, nil
}

func (s *UserStore) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (user.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			is_locked = CASE WHEN $2 > 0 AND failed_login_attempts + 1 >= $2 THEN TRUE ELSE is_locked END,
			locked_until = CASE WHEN $2 > 0 AND failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
			updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns,
		id, threshold, lockUntil, s.now(),
	)
	updated, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, unavailable(user.ErrStoreUnavailable, err)
	}
	return updated, nil
}

func (s *UserStore) getOne(ctx context.Context, query string, arg string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, unavailable(user.ErrStoreUnavailable, err)
	}
	return u, nil
}

func patchAssignments(p user.Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.DisplayName != nil {
		add("display_name", *p.DisplayName)
	}
	if p.PasswordDigest != nil {
		add("password_digest", *p.PasswordDigest)
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.IsLocked != nil {
		add("is_locked", *p.IsLocked)
	}
	if p.FailedLoginAttempts != nil {
		add("failed_login_attempts", *p.FailedLoginAttempts)
	}
	if p.ClearLockedUntil {
		sets = append(sets, "locked_until = NULL")
	} else if p.LockedUntil != nil {
		add("locked_until", *p.LockedUntil)
	}
	return sets, args
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u           user.User
		lockedUntil *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordDigest,
		&u.DisplayName,
		&u.IsActive,
		&u.IsLocked,
		&u.IsAdmin,
		&u.FailedLoginAttempts,
		&lockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}
	if lockedUntil != nil {
		until := lockedUntil.UTC()
		u.LockedUntil = &until
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
