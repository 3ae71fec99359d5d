package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0, got %v", c.Server.ShutdownTimeout))
	}

	// CACHE_EXPIRATION maps here.
	if c.Cache.ExpirationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("cache.expiration_minutes must be > 0, got %d", c.Cache.ExpirationMinutes))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be >= 0, got %d", c.Cache.MaxEntries))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("cache.sweep_interval must be >= 0, got %v", c.Cache.SweepInterval))
	}

	if c.LDAP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ldap.timeout must be > 0, got %v", c.LDAP.Timeout))
	}
	switch strings.ToLower(c.LDAP.GroupMatch) {
	case "all", "any":
		// valid
	default:
		errs = append(errs, fmt.Errorf("ldap.group_match must be \"all\" or \"any\", got %q", c.LDAP.GroupMatch))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute must be >= 0, got %d", c.RateLimit.RequestsPerMinute))
	}

	switch c.Audit.Type {
	case "none", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("audit.type must be \"none\" or \"postgres\", got %q", c.Audit.Type))
	}
	if c.Audit.Type == "postgres" && c.Audit.Postgres.DSN == "" && c.Audit.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("audit.postgres.dsn or audit.postgres.dsn_file is required when audit.type is \"postgres\""))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
