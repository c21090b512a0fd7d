package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// Builder assembles a [Service]. It is single-use: configure it during
// initialization, call Build once, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    user.Store
	sessions session.Store

	auditSink AuditSink
	logger    *slog.Logger
	hasher    PasswordHasher
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for the default session store and the
// unknown-email failure bucket.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store user.Store) *Builder {
	b.users = store
	return b
}

// WithSessionStore overrides the Redis session store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithHasher replaces the argon2id hasher built from Config.Password.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock sets the time source for sessions, lockout and tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.SweepBatch)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(cfg.Password.hasherConfig())
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	codec, err := jwt.NewCodec(cfg.JWT.codecConfig())
	if err != nil {
		return nil, err
	}
	codec = codec.WithClock(now)

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	var async *AsyncAuditSink
	if cfg.Audit.Enabled && cfg.Audit.Async {
		async = NewAsyncAuditSink(cfg.Audit, sink)
		sink = async
	}
	aud := auditor{sink: sink, logger: logger, enabled: cfg.Audit.Enabled}

	metrics := NewMetrics(cfg.Metrics)

	svc := &Service{
		config:      cfg,
		users:       b.users,
		sessions:    newSessionManager(sessions, b.users, cfg.Session, aud, metrics, logger, now),
		codec:       codec,
		hasher:      hasher,
		emailBucket: limiters.NewEmailBucket(b.redis, cfg.Lockout.EmailBucketTTL),
		lockout: limiters.LockoutPolicy{
			Threshold: cfg.Lockout.MaxFailedAttempts,
			Duration:  cfg.Lockout.Duration,
		},
		audit:      aud,
		asyncAudit: async,
		metrics:    metrics,
		logger:     logger,
		now:        now,
	}

	b.built = true

	return svc, nil
}
