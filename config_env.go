package authcore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every variable read by LoadConfigFromEnv.
const EnvPrefix = "AUTHCORE_"

// EnvError reports a variable that is set but cannot be parsed.
type EnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("env %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error { return e.Err }

// LoadConfigFromEnv overlays AUTHCORE_* variables on DefaultConfig and
// validates the result. Unset variables keep their defaults.
//
//	AUTHCORE_JWT_SECRET, AUTHCORE_JWT_ISSUER, AUTHCORE_JWT_AUDIENCE,
//	AUTHCORE_JWT_ACCESS_TTL, AUTHCORE_JWT_LEEWAY, AUTHCORE_JWT_KEY_ID,
//	AUTHCORE_SESSION_HORIZON, AUTHCORE_SESSION_ROTATE_ON_REFRESH,
//	AUTHCORE_SESSION_REDIS_PREFIX, AUTHCORE_SESSION_SWEEP_INTERVAL,
//	AUTHCORE_SESSION_SWEEP_BATCH, AUTHCORE_LOCKOUT_MAX_FAILED_ATTEMPTS,
//	AUTHCORE_LOCKOUT_DURATION, AUTHCORE_LOCKOUT_EMAIL_BUCKET_TTL,
//	AUTHCORE_PASSWORD_MEMORY, AUTHCORE_PASSWORD_TIME,
//	AUTHCORE_PASSWORD_PARALLELISM, AUTHCORE_PASSWORD_MIN_LENGTH,
//	AUTHCORE_AUDIT_ENABLED, AUTHCORE_AUDIT_ASYNC, AUTHCORE_AUDIT_BUFFER_SIZE,
//	AUTHCORE_METRICS_ENABLED
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	r := envReader{lookup: lookup}

	if v, ok := r.str("JWT_SECRET"); ok {
		cfg.JWT.Secret = []byte(v)
	}
	r.setString("JWT_ISSUER", &cfg.JWT.Issuer)
	r.setString("JWT_AUDIENCE", &cfg.JWT.Audience)
	r.setDuration("JWT_ACCESS_TTL", &cfg.JWT.AccessTTL)
	r.setDuration("JWT_LEEWAY", &cfg.JWT.Leeway)
	r.setString("JWT_KEY_ID", &cfg.JWT.KeyID)

	r.setDuration("SESSION_HORIZON", &cfg.Session.Horizon)
	r.setBool("SESSION_ROTATE_ON_REFRESH", &cfg.Session.RotateOnRefresh)
	r.setString("SESSION_REDIS_PREFIX", &cfg.Session.RedisPrefix)
	r.setDuration("SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)
	r.setInt("SESSION_SWEEP_BATCH", &cfg.Session.SweepBatch)

	r.setInt("LOCKOUT_MAX_FAILED_ATTEMPTS", &cfg.Lockout.MaxFailedAttempts)
	r.setDuration("LOCKOUT_DURATION", &cfg.Lockout.Duration)
	r.setDuration("LOCKOUT_EMAIL_BUCKET_TTL", &cfg.Lockout.EmailBucketTTL)

	r.setUint32("PASSWORD_MEMORY", &cfg.Password.Memory)
	r.setUint32("PASSWORD_TIME", &cfg.Password.Time)
	parallelism := uint32(cfg.Password.Parallelism)
	r.setUint32("PASSWORD_PARALLELISM", &parallelism)
	if parallelism > 255 {
		r.fail("PASSWORD_PARALLELISM", strconv.FormatUint(uint64(parallelism), 10), fmt.Errorf("must be <= 255"))
	}
	cfg.Password.Parallelism = uint8(parallelism)
	r.setInt("PASSWORD_MIN_LENGTH", &cfg.Password.MinLength)

	r.setBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	r.setBool("AUDIT_ASYNC", &cfg.Audit.Async)
	r.setInt("AUDIT_BUFFER_SIZE", &cfg.Audit.BufferSize)
	r.setBool("METRICS_ENABLED", &cfg.Metrics.Enabled)

	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envReader records the first parse failure and ignores later ones.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) str(name string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) fail(name, value string, err error) {
	if r.err == nil {
		r.err = &EnvError{Key: EnvPrefix + name, Value: value, Err: err}
	}
}

func (r *envReader) setString(name string, dst *string) {
	if v, ok := r.str(name); ok {
		*dst = v
	}
}

func (r *envReader) setDuration(name string, dst *time.Duration) {
	v, ok := r.str(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = d
}

func (r *envReader) setBool(name string, dst *bool) {
	v, ok := r.str(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = b
}

func (r *envReader) setInt(name string, dst *int) {
	v, ok := r.str(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = n
}

func (r *envReader) setUint32(name string, dst *uint32) {
	v, ok := r.str(name)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = uint32(n)
}
