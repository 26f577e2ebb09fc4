// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/overcall/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the backend: memory or postgres.
	Store       string `koanf:"store"`
	PostgresDSN string `koanf:"postgres_dsn"`
	// StoreTimeoutMS bounds each store call.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// Broker selects the event fan-out: memory or redis.
	Broker        string `koanf:"broker"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisChannel  string `koanf:"redis_channel"`
	// SubscriberBuffer is how far a stream client may lag before drops.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// LeaderboardCap is the default admin leaderboard size.
	LeaderboardCap int `koanf:"leaderboard_cap"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ScoreRetryLimit bounds recomputes after a version conflict.
	ScoreRetryLimit int `koanf:"score_retry_limit"`
	WicketBonus     int `koanf:"wicket_bonus"`
	WicketPenalty   int `koanf:"wicket_penalty"`
	// ActiveRule is nonzero_runs or submitted.
	ActiveRule string `koanf:"active_rule"`

	// StatsRefreshIntervalMS is the period of the gauge refresh job.
	StatsRefreshIntervalMS int `koanf:"stats_refresh_interval_ms"`

	// DedupeSize bounds remembered admin request IDs.
	DedupeSize int `koanf:"dedupe_size"`

	// Teams are provisioned at startup if missing.
	Teams []string `koanf:"teams"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		Store:                  "memory",
		StoreTimeoutMS:         2000,
		Broker:                 "memory",
		RedisAddr:              "localhost:6379",
		RedisChannel:           "overcall:events",
		SubscriberBuffer:       64,
		LeaderboardCap:         50,
		MaxLeaderboardLimit:    500,
		ScoreRetryLimit:        3,
		WicketBonus:            10,
		WicketPenalty:          5,
		ActiveRule:             scoring.ActiveNonZeroRuns.String(),
		StatsRefreshIntervalMS: 5000,
		DedupeSize:             10_000,
	}
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// StatsRefreshInterval returns StatsRefreshIntervalMS as a duration.
func (c *Config) StatsRefreshInterval() time.Duration {
	return time.Duration(c.StatsRefreshIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.Store != "memory" && c.Store != "postgres":
		return fmt.Errorf("store %q: %w", c.Store, ErrInvalidConfig)
	case c.Store == "postgres" && c.PostgresDSN == "":
		return fmt.Errorf("postgres_dsn required for the postgres store: %w", ErrInvalidConfig)
	case c.Broker != "memory" && c.Broker != "redis":
		return fmt.Errorf("broker %q: %w", c.Broker, ErrInvalidConfig)
	case c.Broker == "redis" && (c.RedisAddr == "" || c.RedisChannel == ""):
		return fmt.Errorf("redis_addr and redis_channel required for the redis broker: %w", ErrInvalidConfig)
	case c.StoreTimeoutMS < 0:
		return fmt.Errorf("store_timeout_ms must be >= 0: %w", ErrInvalidConfig)
	case c.LeaderboardCap <= 0:
		return fmt.Errorf("leaderboard_cap must be > 0: %w", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < c.LeaderboardCap:
		return fmt.Errorf("max_leaderboard_limit must be >= leaderboard_cap: %w", ErrInvalidConfig)
	case c.ScoreRetryLimit < 1:
		return fmt.Errorf("score_retry_limit must be >= 1: %w", ErrInvalidConfig)
	case c.WicketBonus < 0 || c.WicketPenalty < 0:
		return fmt.Errorf("wicket_bonus and wicket_penalty must be >= 0: %w", ErrInvalidConfig)
	case c.StatsRefreshIntervalMS <= 0:
		return fmt.Errorf("stats_refresh_interval_ms must be > 0: %w", ErrInvalidConfig)
	}
	if _, err := scoring.ParseActiveRule(c.ActiveRule); err != nil {
		return fmt.Errorf("active_rule: %w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q: %w", c.LogFormat, ErrInvalidConfig)
	}
	return nil
}
