package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// serverConfig is everything main needs beyond authcore.Config.
type serverConfig struct {
	HTTPAddr        string
	DatabaseURL     string
	RedisURL        string
	StoreDriver     string // pgx or gorm
	SessionStore    string // redis or sql
	LogLevel        string
	LogFormat       string
	KafkaBrokers    []string
	KafkaTopic      string
	TrustProxy      bool
	CookieSecure    bool
	ShutdownTimeout time.Duration

	Auth authcore.Config
}

func loadServerConfig(lookup func(string) (string, bool), auth func() (authcore.Config, error)) (serverConfig, error) {
	get := func(name, def string) string {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := serverConfig{
		HTTPAddr:     get("HTTP_ADDR", ":8080"),
		DatabaseURL:  get("DATABASE_URL", ""),
		RedisURL:     get("REDIS_URL", ""),
		StoreDriver:  strings.ToLower(get("STORE_DRIVER", "pgx")),
		SessionStore: strings.ToLower(get("SESSION_STORE", "redis")),
		LogLevel:     get("LOG_LEVEL", "info"),
		LogFormat:    get("LOG_FORMAT", "json"),
		KafkaTopic:   get("KAFKA_TOPIC", ""),
	}

	if brokers := get("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.TrustProxy, err = strconv.ParseBool(get("TRUST_PROXY", "false")); err != nil {
		return serverConfig{}, fmt.Errorf("TRUST_PROXY: %w", err)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(get("COOKIE_SECURE", "true")); err != nil {
		return serverConfig{}, fmt.Errorf("COOKIE_SECURE: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(get("SHUTDOWN_TIMEOUT", "15s")); err != nil {
		return serverConfig{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return serverConfig{}, errors.New("DATABASE_URL is required")
	}
	switch cfg.StoreDriver {
	case "pgx", "gorm":
	default:
		return serverConfig{}, fmt.Errorf("STORE_DRIVER must be pgx or gorm, got %q", cfg.StoreDriver)
	}
	switch cfg.SessionStore {
	case "redis":
		if cfg.RedisURL == "" {
			return serverConfig{}, errors.New("REDIS_URL is required when SESSION_STORE=redis")
		}
	case "sql":
	default:
		return serverConfig{}, fmt.Errorf("SESSION_STORE must be redis or sql, got %q", cfg.SessionStore)
	}

	if cfg.Auth, err = auth(); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}
