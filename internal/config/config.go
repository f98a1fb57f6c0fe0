// Package config reads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds every server setting
type Config struct {
	Host string
	Port int

	StorageType string
	RedisURL    string
	PostgresDSN string

	JWTSecret string
	TokenTTL  time.Duration

	PresenceTimeout  time.Duration
	ChallengeTimeout time.Duration
	SweepInterval    time.Duration
	CommitRetries    int

	LogLevel slog.Level
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Port:             8080,
		StorageType:      StorageMemory,
		JWTSecret:        "battleship-dev-secret-change-me",
		TokenTTL:         24 * time.Hour,
		PresenceTimeout:  90 * time.Second,
		ChallengeTimeout: 2 * time.Minute,
		SweepInterval:    15 * time.Second,
		CommitRetries:    3,
		LogLevel:         slog.LevelInfo,
	}
}

// Load reads .env files (default ".env", missing files are ignored) into the
// process environment without overriding it, then builds the Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	cfg.Host = p.str("BATTLESHIP_HOST", cfg.Host)
	cfg.Port = p.int("BATTLESHIP_PORT", cfg.Port)
	cfg.StorageType = strings.ToLower(p.str("STORAGE_TYPE", cfg.StorageType))
	cfg.RedisURL = p.str("REDIS_URL", cfg.RedisURL)
	cfg.PostgresDSN = p.str("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.JWTSecret = p.str("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = p.duration("TOKEN_TTL", cfg.TokenTTL)
	cfg.PresenceTimeout = p.duration("PRESENCE_TIMEOUT", cfg.PresenceTimeout)
	cfg.ChallengeTimeout = p.duration("CHALLENGE_TIMEOUT", cfg.ChallengeTimeout)
	cfg.SweepInterval = p.duration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.CommitRetries = p.int("COMMIT_RETRIES", cfg.CommitRetries)
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			p.errs = append(p.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings are usable together
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORAGE_TYPE=redis"))
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORAGE_TYPE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be memory, redis or postgres, got %q", c.StorageType))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("BATTLESHIP_PORT %d is out of range", c.Port))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"TOKEN_TTL":         c.TokenTTL,
		"PRESENCE_TIMEOUT":  c.PresenceTimeout,
		"CHALLENGE_TIMEOUT": c.ChallengeTimeout,
		"SWEEP_INTERVAL":    c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.CommitRetries < 0 {
		errs = append(errs, errors.New("COMMIT_RETRIES must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
