package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config holds every tunable of the Service. Build it with DefaultConfig or
// LoadConfigFromEnv, then adjust fields.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token minting. Secret must be at least 32 bytes.
type JWTConfig struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	Leeway    time.Duration

	// KeyID and VerifyKeys support signing-key rotation; see jwt.Config.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh sessions.
type SessionConfig struct {
	// Horizon is the fixed lifetime of a session from creation.
	Horizon time.Duration

	// RotateOnRefresh issues a new refresh token on every successful refresh
	// and retires the presented one. Off by default: a refresh token stays
	// valid until logout, revocation or expiry.
	RotateOnRefresh bool

	RedisPrefix   string
	SweepInterval time.Duration
	SweepBatch    int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures failed-login handling.
type LockoutConfig struct {
	MaxFailedAttempts int
	Duration          time.Duration

	// EmailBucketTTL is the counting window for failures against unknown
	// emails. Only used when a Redis client is supplied.
	EmailBucketTTL time.Duration
}

// PasswordConfig holds argon2id cost parameters and length policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int

	UpgradeOnLogin bool
}

// AuditConfig controls audit delivery. With Async set, events are queued and
// forwarded by a background goroutine.
type AuditConfig struct {
	Enabled    bool
	Async      bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.Secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Issuer:    "authcore",
			Audience:  "authcore-clients",
			AccessTTL: 10 * time.Minute,
		},
		Session: SessionConfig{
			Horizon:         7 * 24 * time.Hour,
			RotateOnRefresh: false,
			RedisPrefix:     "as",
			SweepInterval:   time.Hour,
			SweepBatch:      500,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			Duration:          15 * time.Minute,
			EmailBucketTTL:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MinLength:      pw.MinLength,
			MaxLength:      pw.MaxLength,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Async:      false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
		MinLength:   c.MinLength,
		MaxLength:   c.MaxLength,
	}
}

func (c JWTConfig) codecConfig() jwt.Config {
	return jwt.Config{
		Secret:     cloneBytes(c.Secret),
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		AccessTTL:  c.AccessTTL,
		Leeway:     c.Leeway,
		KeyID:      c.KeyID,
		VerifyKeys: c.VerifyKeys,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" || strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Issuer and Audience are required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.Horizon <= c.JWT.AccessTTL {
		return errors.New("Session Horizon must be greater than JWT AccessTTL")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}
	if c.Session.SweepBatch <= 0 {
		return errors.New("Session SweepBatch must be > 0")
	}

	// Lockout
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	if c.Lockout.EmailBucketTTL < 0 {
		return errors.New("Lockout EmailBucketTTL must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength != 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Async is enabled")
	}

	return nil
}
