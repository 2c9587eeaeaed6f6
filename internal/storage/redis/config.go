package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TxTTL bounds how long transaction records live. Zero keeps them until pruned.
	TxTTL time.Duration

	// MaxWatchRetries is how often an optimistic ledger write is retried
	// when a watched key changes underneath it.
	MaxWatchRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		TxTTL:           7 * 24 * time.Hour,
		MaxWatchRetries: 5,
	}
}
