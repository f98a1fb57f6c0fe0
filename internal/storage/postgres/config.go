package postgres

import "time"

// Config holds PostgreSQL connection settings
type Config struct {
	// DSN is a lib/pq connection string or URL
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns sensible defaults for PostgreSQL configuration
func DefaultConfig() Config {
	return Config{
		DSN:             "postgres://localhost:5432/battleship?sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}
