// Package config provides process configuration for the ldapgate gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// Per-request directory settings (LDAP_ENDPOINT and friends) are not part
// of this configuration; they are read on every request by the directory
// package so headers can override them.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all process configuration for the gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	LDAP          LDAPConfig          `yaml:"ldap"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // default: "0.0.0.0"
	Port            int           `yaml:"port"`             // default: 9000
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 10s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
	Realm           string        `yaml:"realm"`            // Basic challenge realm, default: "ldapgate"
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// CacheConfig holds credential cache settings.
type CacheConfig struct {
	ExpirationMinutes int           `yaml:"expiration_minutes"` // default: 5
	MaxEntries        int           `yaml:"max_entries"`        // 0 = unbounded
	SweepInterval     time.Duration `yaml:"sweep_interval"`     // default: 1m, 0 disables
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationMinutes) * time.Minute
}

// LDAPConfig holds settings for the directory capability.
type LDAPConfig struct {
	Timeout            time.Duration `yaml:"timeout"`              // default: 10s
	GroupMatch         string        `yaml:"group_match"`          // "all" or "any", default: "all"
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // ldaps:// only
}

// RateLimitConfig holds per-subject rate limiting settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // 0 disables
}

// AuditConfig selects the decision audit sink.
type AuditConfig struct {
	Type     string         `yaml:"type"` // "none" or "postgres", default: "none"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Realm:           "ldapgate",
		},
		Cache: CacheConfig{
			ExpirationMinutes: 5,
			SweepInterval:     time.Minute,
		},
		LDAP: LDAPConfig{
			Timeout:    10 * time.Second,
			GroupMatch: "all",
		},
		Audit: AuditConfig{
			Type: "none",
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
