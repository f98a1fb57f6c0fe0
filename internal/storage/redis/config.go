package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// Retention of documents that can no longer change. Zero keeps them forever.
	ResolvedChallengeTTL time.Duration
	FinishedSessionTTL   time.Duration

	// CreateAttempts bounds retries of a challenge create that lost a WATCH race
	CreateAttempts int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "redis://localhost:6379",
		PoolSize:             10,
		MinIdleConns:         2,
		ResolvedChallengeTTL: 24 * time.Hour,
		FinishedSessionTTL:   7 * 24 * time.Hour,
		CreateAttempts:       3,
	}
}
