package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LDAPGATE_CONFIG env, ./config.yaml, /etc/ldapgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	return load(configPath, os.LookupEnv)
}

func load(configPath string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath, lookup)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg, lookup); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LDAPGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/ldapgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string, lookup func(string) (string, bool)) string {
	if configPath != "" {
		return configPath
	}

	if envPath, ok := lookup("LDAPGATE_CONFIG"); ok && envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/ldapgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps environment variables to config fields.
// Malformed numeric or duration values are errors rather than being
// ignored, so a typo cannot silently keep the default.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("HOST", &cfg.Server.Host)
	e.int("PORT", &cfg.Server.Port)
	e.str("AUTH_REALM", &cfg.Server.Realm)

	e.int("CACHE_EXPIRATION", &cfg.Cache.ExpirationMinutes)
	e.int("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)

	e.duration("LDAP_TIMEOUT", &cfg.LDAP.Timeout)
	e.str("LDAP_GROUP_MATCH", &cfg.LDAP.GroupMatch)

	e.int("RATE_LIMIT_RPM", &cfg.RateLimit.RequestsPerMinute)

	e.str("AUDIT_TYPE", &cfg.Audit.Type)
	e.str("AUDIT_POSTGRES_DSN", &cfg.Audit.Postgres.DSN)

	e.str("LDAPGATE_LOG_LEVEL", &cfg.Logging.Level)
	e.str("LDAPGATE_DEBUG", &cfg.Logging.Debug)
	e.str("LDAPGATE_LOG_FORMAT", &cfg.Logging.Format)

	return errors.Join(e.errs...)
}

// envReader applies non-empty environment values and collects parse errors.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return
	}
	*dst = n
}

// duration accepts Go duration strings ("15s") or a bare number of seconds.
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return
	}
	*dst = d
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// audit.postgres.dsn_file -> audit.postgres.dsn
	if cfg.Audit.Postgres.DSNFile != "" && cfg.Audit.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Audit.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("audit.postgres.dsn_file: %w", err)
		}
		cfg.Audit.Postgres.DSN = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
