package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSweepBatch = 500

const revokeScript = `
local key = KEYS[1]
local owner = ARGV[1]
local now_ms = ARGV[2]

local fields = redis.call("HMGET", key, "uid", "rev")
if not fields[1] then
  return 0
end
if owner ~= "" and fields[1] ~= owner then
  return 0
end
if fields[2] ~= "0" then
  return 0
end

redis.call("HSET", key, "rev", "1", "upd", now_ms)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

const revokeAllScript = `
local user_key = KEYS[1]
local session_prefix = ARGV[1]
local now_ms = ARGV[2]

local ids = redis.call("ZRANGE", user_key, 0, -1)
local changed = 0
for _, id in ipairs(ids) do
  local key = session_prefix .. id
  if redis.call("HGET", key, "rev") == "0" then
    redis.call("HSET", key, "rev", "1", "upd", now_ms)
    changed = changed + 1
  end
end
return changed
`

var revokeAllLua = redis.NewScript(revokeAllScript)

const replaceTokenScript = `
local key = KEYS[1]
local new_token_key = KEYS[2]
local superseded_key = KEYS[3]
local old_hash = ARGV[1]
local new_hash = ARGV[2]
local now_ms = ARGV[3]
local session_id = ARGV[4]

local fields = redis.call("HMGET", key, "tok", "rev")
if not fields[1] or fields[2] ~= "0" or fields[1] ~= old_hash then
  return 0
end

redis.call("HSET", key, "tok", new_hash, "upd", now_ms)
redis.call("SET", new_token_key, session_id)
redis.call("SADD", superseded_key, old_hash)
return 1
`

var replaceTokenLua = redis.NewScript(replaceTokenScript)

const sweepScript = `
local expiry_key = KEYS[1]
local prefix = ARGV[1]
local now_ms = ARGV[2]
local batch = tonumber(ARGV[3])

local ids = redis.call("ZRANGEBYSCORE", expiry_key, "-inf", now_ms, "LIMIT", 0, batch)
for _, id in ipairs(ids) do
  local key = prefix .. ":s:" .. id
  local fields = redis.call("HMGET", key, "uid", "tok")
  if fields[2] then
    redis.call("DEL", prefix .. ":t:" .. fields[2])
  end
  local superseded_key = prefix .. ":p:" .. id
  for _, old in ipairs(redis.call("SMEMBERS", superseded_key)) do
    redis.call("DEL", prefix .. ":t:" .. old)
  end
  redis.call("DEL", superseded_key)
  if fields[1] then
    redis.call("ZREM", prefix .. ":u:" .. fields[1], id)
  end
  redis.call("DEL", key)
  redis.call("ZREM", expiry_key, id)
end
return #ids
`

var sweepLua = redis.NewScript(sweepScript)

// RedisStore is a Redis-backed [Store]. The key layout is described in the
// package documentation.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	sweepBatch int
}

// NewRedisStore creates a [RedisStore]. prefix namespaces every key; an empty
// prefix defaults to "as" and is wrapped in braces unless it already carries a
// hash tag. sweepBatch bounds how many sessions a single sweep script deletes
// before yielding; zero selects the default of 500.
func NewRedisStore(client redis.UniversalClient, prefix string, sweepBatch int) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	if !strings.Contains(prefix, "{") {
		prefix = "{" + prefix + "}"
	}
	if sweepBatch <= 0 {
		sweepBatch = defaultSweepBatch
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		sweepBatch: sweepBatch,
	}
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":s:" + id
}

func (s *RedisStore) tokenKey(tokenHash string) string {
	return s.prefix + ":t:" + tokenHash
}

func (s *RedisStore) supersededKey(id string) string {
	return s.prefix + ":p:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) expiryKey() string {
	return s.prefix + ":exp"
}

// Create persists a new session and its indexes in one transaction.
func (s *RedisStore) Create(ctx context.Context, sess Session) error {
	fields, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(sess.ID), fields)
		pipe.Set(ctx, s.tokenKey(sess.TokenHash), sess.ID, 0)
		pipe.ZAdd(ctx, s.userKey(sess.UserID), redis.Z{
			Score:  float64(sess.CreatedAt.UnixMilli()),
			Member: sess.ID,
		})
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{
			Score:  float64(sess.ExpiresAt.UnixMilli()),
			Member: sess.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Get loads a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNotFound
	}
	return Decode(id, fields)
}

// GetByTokenHash resolves the token index and loads the session.
func (s *RedisStore) GetByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.Get(ctx, id)
}

// ListForUser returns every indexed session of the user, newest first.
//
//	Performance: 1 ZREVRANGE + 1 pipelined HGETALL per session.
func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Session, 0, len(ids))
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}
		if len(fields) == 0 {
			// Index entry outlived its record; the next sweep drops it.
			continue
		}
		sess, decErr := Decode(ids[i], fields)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, sess)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Revoke flips the revoked flag with a conditional script.
func (s *RedisStore) Revoke(ctx context.Context, id, ownerUserID string, now time.Time) (bool, error) {
	res, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.sessionKey(id)},
		ownerUserID,
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res == 1, nil
}

// RevokeAllForUser revokes every live record of the user in one script.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":s:",
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res, nil
}

// ReplaceToken performs a compare-and-swap of the token hash. The old token
// index entry stays and is recorded in the superseded set for the sweep.
func (s *RedisStore) ReplaceToken(ctx context.Context, id, oldHash, newHash string, now time.Time) (bool, error) {
	res, err := replaceTokenLua.Run(
		ctx,
		s.redis,
		[]string{s.sessionKey(id), s.tokenKey(newHash), s.supersededKey(id)},
		oldHash,
		newHash,
		strconv.FormatInt(now.UnixMilli(), 10),
		id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res == 1, nil
}

// DeleteExpired removes expired sessions in batches until none remain.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	nowMillis := strconv.FormatInt(now.UnixMilli(), 10)
	total := 0
	for {
		n, err := sweepLua.Run(
			ctx,
			s.redis,
			[]string{s.expiryKey()},
			s.prefix,
			nowMillis,
			s.sweepBatch,
		).Int()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		total += n
		if n < s.sweepBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
