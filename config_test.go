package authcore

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store/memory"
)

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "Secret") {
		t.Fatalf("expected missing secret rejected, got %v", err)
	}

	cfg.JWT.Secret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults plus secret to validate: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 10*time.Minute || cfg.Session.Horizon != 7*24*time.Hour {
		t.Fatalf("unexpected token horizons: %s / %s", cfg.JWT.AccessTTL, cfg.Session.Horizon)
	}
	if cfg.Lockout.MaxFailedAttempts != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.Session.RotateOnRefresh {
		t.Fatal("rotation must default off")
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"short secret":      func(c *Config) { c.JWT.Secret = []byte("short") },
		"zero access ttl":   func(c *Config) { c.JWT.AccessTTL = 0 },
		"no audience":       func(c *Config) { c.JWT.Audience = " " },
		"large leeway":      func(c *Config) { c.JWT.Leeway = time.Hour },
		"horizon too short": func(c *Config) { c.Session.Horizon = 5 * time.Minute },
		"empty prefix":      func(c *Config) { c.Session.RedisPrefix = "" },
		"zero sweep batch":  func(c *Config) { c.Session.SweepBatch = 0 },
		"zero threshold":    func(c *Config) { c.Lockout.MaxFailedAttempts = 0 },
		"zero lock window":  func(c *Config) { c.Lockout.Duration = 0 },
		"weak memory":       func(c *Config) { c.Password.Memory = 1024 },
		"short salt":        func(c *Config) { c.Password.SaltLength = 8 },
		"max below min":     func(c *Config) { c.Password.MaxLength = 4 },
		"async no buffer": func(c *Config) {
			c.Audit.Async = true
			c.Audit.BufferSize = 0
		},
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	b := New().
		WithConfig(cfg).
		WithUserStore(memory.NewUserStore(nil)).
		WithSessionStore(memory.NewSessionStore())
	cfg.JWT.Secret[0] = 'X'

	svc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if svc.Config().JWT.Secret[0] != testSecret[0] {
		t.Fatal("builder must not observe caller mutation after WithConfig")
	}

	got := svc.Config()
	got.JWT.Secret[0] = 'Y'
	if svc.Config().JWT.Secret[0] != testSecret[0] {
		t.Fatal("Config must return a copy")
	}

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRequiresStores(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing user store rejected")
	}
	if _, err := New().WithConfig(testConfig()).WithUserStore(memory.NewUserStore(nil)).Build(); err == nil {
		t.Fatal("expected missing session store and redis rejected")
	}
}

func TestLoadConfigFromLookup(t *testing.T) {
	env := map[string]string{
		"AUTHCORE_JWT_SECRET":                  string(testSecret),
		"AUTHCORE_JWT_ACCESS_TTL":              "5m",
		"AUTHCORE_SESSION_ROTATE_ON_REFRESH":   "true",
		"AUTHCORE_LOCKOUT_MAX_FAILED_ATTEMPTS": "3",
		"AUTHCORE_PASSWORD_PARALLELISM":        "2",
		"AUTHCORE_AUDIT_ASYNC":                 "true",
		"AUTHCORE_JWT_ISSUER":                  "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := loadConfig(lookup)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.AccessTTL != 5*time.Minute || !cfg.Session.RotateOnRefresh {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Lockout.MaxFailedAttempts != 3 || cfg.Password.Parallelism != 2 || !cfg.Audit.Async {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.JWT.Issuer != "authcore" {
		t.Fatalf("blank value must keep default, got %q", cfg.JWT.Issuer)
	}
}

func TestLoadConfigReportsBadValue(t *testing.T) {
	env := map[string]string{
		"AUTHCORE_JWT_SECRET":     string(testSecret),
		"AUTHCORE_JWT_ACCESS_TTL": "ten minutes",
		"AUTHCORE_AUDIT_ENABLED":  "maybe",
	}
	_, err := loadConfig(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	var envErr *EnvError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected EnvError, got %v", err)
	}
	if envErr.Key != "AUTHCORE_JWT_ACCESS_TTL" {
		t.Fatalf("expected first failure reported, got %s", envErr.Key)
	}

	_, err = loadConfig(func(k string) (string, bool) {
		if k == "AUTHCORE_PASSWORD_PARALLELISM" {
			return "300", true
		}
		if k == "AUTHCORE_JWT_SECRET" {
			return string(testSecret), true
		}
		return "", false
	})
	if !errors.As(err, &envErr) || envErr.Key != "AUTHCORE_PASSWORD_PARALLELISM" {
		t.Fatalf("expected parallelism overflow rejected, got %v", err)
	}
}
