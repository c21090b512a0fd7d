package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore/session"
)

const sessionColumns = `id, user_id, token_hash, revoked, client_ip, user_agent, expires_at, created_at, updated_at`

const joinedSessionColumns = `s.id, s.user_id, s.token_hash, s.revoked, s.client_ip, s.user_agent, s.expires_at, s.created_at, s.updated_at`

// SessionStore implements session.Store on the sessions table.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore returns a store bound to pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, sess session.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.Revoked, sess.ClientIP, sess.UserAgent,
		sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return unavailable(session.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	return s.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// GetByTokenHash matches the current hash first, then superseded ones.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	return s.getOne(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1
		UNION ALL
		SELECT `+joinedSessionColumns+`
		FROM session_superseded_tokens p
		JOIN sessions s ON s.id = p.session_id
		WHERE p.token_hash = $1
		LIMIT 1
	`, tokenHash)
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]session.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, unavailable(session.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]session.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, unavailable(session.ErrStoreUnavailable, err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(session.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id, ownerUserID string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked = TRUE, updated_at = $3
		WHERE id = $1
		  AND revoked = FALSE
		  AND ($2 = '' OR user_id = $2)
	`, id, ownerUserID, now)
	if err != nil {
		return false, unavailable(session.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked = TRUE, updated_at = $2
		WHERE user_id = $1 AND revoked = FALSE
	`, userID, now)
	if err != nil {
		return 0, unavailable(session.ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *SessionStore) ReplaceToken(ctx context.Context, id, oldHash, newHash string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH swapped AS (
			UPDATE sessions
			SET token_hash = $3, updated_at = $4
			WHERE id = $1 AND token_hash = $2 AND revoked = FALSE
			RETURNING id
		)
		INSERT INTO session_superseded_tokens (token_hash, session_id)
		SELECT $2, id FROM swapped
	`, id, oldHash, newHash, now)
	if err != nil {
		return false, unavailable(session.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired removes expired rows; superseded hashes go with them via
// ON DELETE CASCADE.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, unavailable(session.ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping reports the round-trip time to the database.
func (s *SessionStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return time.Since(start), unavailable(session.ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *SessionStore) getOne(ctx context.Context, query, arg string) (session.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, unavailable(session.ErrStoreUnavailable, err)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (session.Session, error) {
	var sess session.Session
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.TokenHash,
		&sess.Revoked,
		&sess.ClientIP,
		&sess.UserAgent,
		&sess.ExpiresAt,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, err
	}
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return sess, nil
}
