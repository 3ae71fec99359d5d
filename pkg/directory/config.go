package directory

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Header names carrying per-request directory settings.
const (
	HeaderEndpoint        = "Ldap-Endpoint"
	HeaderManagerDN       = "Ldap-Manager-Dn-Username"
	HeaderManagerPassword = "Ldap-Manager-Password"
	HeaderSearchBase      = "Ldap-Search-Base"
	HeaderSearchFilter    = "Ldap-Search-Filter"
	HeaderRequiredGroups  = "Ldap-Required-Groups"
	HeaderServerDomain    = "Ldap-Server-Domain"
	HeaderAuthFilter      = "Ldap-Auth-Filter"
)

// Environment variables used when the matching header is absent.
const (
	EnvEndpoint        = "LDAP_ENDPOINT"
	EnvManagerDN       = "LDAP_MANAGER_DN_USERNAME"
	EnvManagerPassword = "LDAP_MANAGER_PASSWORD"
	EnvSearchBase      = "LDAP_SEARCH_BASE"
	EnvSearchFilter    = "LDAP_SEARCH_FILTER"
	EnvRequiredGroups  = "LDAP_REQUIRED_GROUPS"
	EnvServerDomain    = "LDAP_SERVER_DOMAIN"
	EnvAuthFilter      = "LDAP_AUTH_FILTER"
)

// ErrConfigMissing is matched by every *ConfigError.
var ErrConfigMissing = errors.New("directory setting missing")

// ConfigError reports a required setting that neither the request headers
// nor the environment provided.
type ConfigError struct {
	// Field is the header name of the missing setting.
	Field string
	// Env is the environment variable consulted as fallback.
	Env string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("directory setting %s (env %s) is required", e.Field, e.Env)
}

// Is makes errors.Is(err, ErrConfigMissing) hold.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigMissing
}

// EnvLookup reads one environment variable. os.LookupEnv satisfies it.
type EnvLookup func(key string) (string, bool)

// MapEnv adapts a map to an EnvLookup.
func MapEnv(m map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Config holds the directory settings for a single request.
// It is a value type: every request resolves its own copy.
type Config struct {
	Endpoint        string
	ManagerDN       string
	ManagerPassword string
	ServerDomain    string
	SearchBase      string
	SearchFilter    string
	AuthFilter      string
	RequiredGroups  []string
}

// Scope identifies the directory and user lookup this configuration points
// at. Two configurations with the same scope find the same user entry, so
// credentials confirmed under one may be trusted under the other. Manager
// credentials and required groups are not part of it.
func (c Config) Scope() string {
	// Headers and environment values cannot contain NUL.
	return strings.Join([]string{
		c.Endpoint,
		c.SearchBase,
		c.SearchFilter,
		c.AuthFilter,
		c.ServerDomain,
	}, "\x00")
}

// Resolve builds the directory configuration for one request.
//
// A header that is present wins over the environment, even when its value
// is empty; the environment is only consulted for absent headers. Required
// settings that end up empty produce a *ConfigError. Resolve reads headers
// and env only and never caches its result.
func Resolve(headers http.Header, env EnvLookup) (Config, error) {
	if env == nil {
		env = MapEnv(nil)
	}
	r := resolver{headers: headers, env: env}

	cfg := Config{
		Endpoint:        r.required(HeaderEndpoint, EnvEndpoint),
		ManagerDN:       r.required(HeaderManagerDN, EnvManagerDN),
		ManagerPassword: r.required(HeaderManagerPassword, EnvManagerPassword),
		SearchBase:      r.required(HeaderSearchBase, EnvSearchBase),
		SearchFilter:    r.required(HeaderSearchFilter, EnvSearchFilter),
		RequiredGroups:  SplitGroups(r.optional(HeaderRequiredGroups, EnvRequiredGroups)),
		ServerDomain:    r.optional(HeaderServerDomain, EnvServerDomain),
		AuthFilter:      r.optional(HeaderAuthFilter, EnvAuthFilter),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

// SplitGroups splits a comma-separated group list. Blank entries are
// dropped, so an empty string yields no groups.
func SplitGroups(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// resolver records the first missing required field.
type resolver struct {
	headers http.Header
	env     EnvLookup
	err     error
}

func (r *resolver) lookup(header, env string) (string, bool) {
	if vals, ok := r.headers[http.CanonicalHeaderKey(header)]; ok {
		if len(vals) == 0 {
			return "", true
		}
		return vals[0], true
	}
	return r.env(env)
}

func (r *resolver) required(header, env string) string {
	v, ok := r.lookup(header, env)
	if (!ok || v == "") && r.err == nil {
		r.err = &ConfigError{Field: header, Env: env}
	}
	return v
}

func (r *resolver) optional(header, env string) string {
	v, _ := r.lookup(header, env)
	return v
}
