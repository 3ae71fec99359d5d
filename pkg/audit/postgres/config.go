package postgres

import "time"

// Config holds the audit database settings.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConns caps the pool size (default: 10).
	MaxConns int32

	// MinConns is the number of idle connections kept open (default: 1).
	MinConns int32

	// MaxConnLifetime recycles connections after this long (default: 30 minutes).
	MaxConnLifetime time.Duration

	// MigrateOnStart applies pending schema migrations in New.
	MigrateOnStart bool

	// WriteTimeout bounds a single Record call (default: 2s). Recording
	// runs on the request path, so a slow database must not stall it.
	WriteTimeout time.Duration
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Second
	}
}
