// Package ldap implements directory.Capability on top of go-ldap.
//
// Each capability opens its own connection per operation: bind as the
// manager, search for the user, then either bind as the user (Authenticate)
// or read its memberOf attribute (HasRequiredGroups).
package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/rhuss/ldapgate/pkg/debug"
	"github.com/rhuss/ldapgate/pkg/directory"
	"github.com/rhuss/ldapgate/pkg/observability"
)

// DefaultTimeout bounds dialing and each LDAP operation.
const DefaultTimeout = 10 * time.Second

// UsernamePlaceholder is replaced by the escaped identity in search and
// auth filters.
const UsernamePlaceholder = "{username}"

// GroupMatch selects how several required groups combine.
type GroupMatch string

const (
	// GroupMatchAll requires membership in every listed group.
	GroupMatchAll GroupMatch = "all"
	// GroupMatchAny requires membership in at least one listed group.
	GroupMatchAny GroupMatch = "any"
)

// ParseGroupMatch converts a configuration string to a GroupMatch.
// An empty string means GroupMatchAll.
func ParseGroupMatch(s string) (GroupMatch, error) {
	switch GroupMatch(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupMatchAll:
		return GroupMatchAll, nil
	case GroupMatchAny:
		return GroupMatchAny, nil
	default:
		return "", fmt.Errorf("unknown group match %q (want all or any)", s)
	}
}

// Conn is the subset of *goldap.Conn used by the capability.
type Conn interface {
	Bind(username, password string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	Close() error
}

// DialFunc opens a connection to endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Conn, error)

// Options configures the capabilities produced by NewFactory.
type Options struct {
	// Timeout bounds dialing and every LDAP operation. Default: 10s.
	Timeout time.Duration

	// GroupMatch is the required-group policy. Default: GroupMatchAll.
	GroupMatch GroupMatch

	// InsecureSkipVerify disables certificate checks for ldaps:// endpoints.
	InsecureSkipVerify bool

	// Dial overrides how connections are opened. Tests use it to inject
	// a fake connection.
	Dial DialFunc
}

// NewFactory returns a directory.Factory producing go-ldap capabilities.
func NewFactory(opts Options) directory.Factory {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.GroupMatch == "" {
		opts.GroupMatch = GroupMatchAll
	}
	if opts.Dial == nil {
		opts.Dial = defaultDialer(opts.Timeout, opts.InsecureSkipVerify)
	}
	return func(cfg directory.Config) directory.Capability {
		return &Capability{cfg: cfg, opts: opts}
	}
}

// Capability checks one user's credentials and groups against an LDAP
// directory.
type Capability struct {
	cfg  directory.Config
	opts Options

	identity string
	secret   string
}

var _ directory.Capability = (*Capability)(nil)

// BindAs stages the user's credentials.
func (c *Capability) BindAs(identity, secret string) {
	c.identity = identity
	c.secret = secret
}

// Authenticate looks the user up with the manager account and binds as the
// single matching entry. When a server domain is configured the user bind
// uses identity@domain instead of the entry DN.
func (c *Capability) Authenticate(ctx context.Context) (ok bool, err error) {
	started := time.Now()
	defer func() { observeDirectory("authenticate", ok, err, started) }()

	// An empty password would be an unauthenticated bind, which many
	// servers accept.
	if c.identity == "" || c.secret == "" {
		return false, nil
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	entry, err := c.findUser(conn, nil)
	if err != nil || entry == nil {
		return false, err
	}

	bindName := entry.DN
	if c.cfg.ServerDomain != "" {
		bindName = c.identity + "@" + c.cfg.ServerDomain
	}
	debug.Log("directory", "user bind", "identity", c.identity, "bind_name", bindName)

	if err := conn.Bind(bindName, c.secret); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, unavailable("user bind", err)
	}
	return true, nil
}

// HasRequiredGroups reads the user's memberOf values and applies the
// configured policy. A group matches either the CN of a memberOf DN or the
// full DN, ignoring case.
func (c *Capability) HasRequiredGroups(ctx context.Context, groups []string) (ok bool, err error) {
	if len(groups) == 0 {
		return true, nil
	}

	started := time.Now()
	defer func() { observeDirectory("groups", ok, err, started) }()

	if c.identity == "" {
		return false, nil
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	entry, err := c.findUser(conn, []string{"memberOf"})
	if err != nil || entry == nil {
		return false, err
	}

	memberOf := entry.GetAttributeValues("memberOf")
	debug.Log("directory", "group check", "identity", c.identity, "member_of", memberOf, "required", groups)
	return MatchGroups(memberOf, groups, c.opts.GroupMatch), nil
}

// connect dials the endpoint, ties the connection to ctx and binds as the
// manager.
func (c *Capability) connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("dial", err)
	}

	endpoint := NormalizeEndpoint(c.cfg.Endpoint)
	conn, err := c.opts.Dial(ctx, endpoint)
	if err != nil {
		return nil, unavailable("dial "+endpoint, err)
	}

	// Closing the connection aborts whatever operation is in flight.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	closer := &ctxConn{Conn: conn, stop: stop}

	if err := conn.Bind(c.cfg.ManagerDN, c.cfg.ManagerPassword); err != nil {
		closer.Close()
		return nil, unavailable("manager bind", err)
	}
	return closer, nil
}

// findUser runs the user search. It returns (nil, nil) when nothing
// matches and an error when more than one entry does.
func (c *Capability) findUser(conn Conn, attrs []string) (*goldap.Entry, error) {
	filter, err := BuildFilter(c.cfg.SearchFilter, c.cfg.AuthFilter, c.identity)
	if err != nil {
		return nil, unavailable("filter", err)
	}
	debug.Log("directory", "search", "base", c.cfg.SearchBase, "filter", filter)

	req := goldap.NewSearchRequest(
		c.cfg.SearchBase,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		2, int(c.opts.Timeout/time.Second), false,
		filter,
		attrs,
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultSizeLimitExceeded) {
			return nil, unavailable("search", fmt.Errorf("filter %q matches more than one entry", filter))
		}
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, unavailable("search", err)
	}

	switch len(result.Entries) {
	case 0:
		debug.Log("directory", "user not found", "identity", c.identity)
		return nil, nil
	case 1:
		return result.Entries[0], nil
	default:
		return nil, unavailable("search", fmt.Errorf("filter %q matches %d entries", filter, len(result.Entries)))
	}
}

// BuildFilter renders the search filter for identity, ANDed with the auth
// filter when one is set. The identity is escaped before substitution.
func BuildFilter(searchFilter, authFilter, identity string) (string, error) {
	escaped := goldap.EscapeFilter(identity)

	filter := wrapParens(strings.ReplaceAll(searchFilter, UsernamePlaceholder, escaped))
	if authFilter != "" {
		filter = "(&" + filter + wrapParens(strings.ReplaceAll(authFilter, UsernamePlaceholder, escaped)) + ")"
	}
	if _, err := goldap.CompileFilter(filter); err != nil {
		return "", fmt.Errorf("invalid filter %q: %w", filter, err)
	}
	return filter, nil
}

// NormalizeEndpoint turns a bare host:port into an ldap:// URL.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "ldap://" + endpoint
}

// MatchGroups applies policy to the user's memberOf DNs.
func MatchGroups(memberOf, required []string, policy GroupMatch) bool {
	if len(required) == 0 {
		return true
	}

	have := make(map[string]bool, 2*len(memberOf))
	for _, dn := range memberOf {
		have[strings.ToLower(dn)] = true
		if cn := CommonName(dn); cn != "" {
			have[strings.ToLower(cn)] = true
		}
	}

	matched := 0
	for _, g := range required {
		if have[strings.ToLower(strings.TrimSpace(g))] {
			matched++
		}
	}

	if policy == GroupMatchAny {
		return matched > 0
	}
	return matched == len(required)
}

// CommonName returns the first CN value of dn, or "" if dn has none or
// cannot be parsed.
func CommonName(dn string) string {
	parsed, err := goldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "cn") {
				return attr.Value
			}
		}
	}
	return ""
}

func wrapParens(f string) string {
	f = strings.TrimSpace(f)
	if strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")") {
		return f
	}
	return "(" + f + ")"
}

func unavailable(op string, err error) error {
	return fmt.Errorf("ldap %s: %w: %w", op, directory.ErrUnavailable, err)
}

func observeDirectory(operation string, ok bool, err error, started time.Time) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case !ok:
		status = "rejected"
	}
	observability.ObserveDirectory(operation, status, started)
}

func defaultDialer(timeout time.Duration, insecure bool) DialFunc {
	return func(ctx context.Context, endpoint string) (Conn, error) {
		dialer := &net.Dialer{Timeout: timeout}
		if deadline, ok := ctx.Deadline(); ok {
			dialer.Deadline = deadline
		}
		conn, err := goldap.DialURL(endpoint,
			goldap.DialWithDialer(dialer),
			goldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: insecure}), //nolint:gosec // opt-in via config
		)
		if err != nil {
			return nil, err
		}
		conn.SetTimeout(timeout)
		return conn, nil
	}
}

// ctxConn releases the context watcher on Close.
type ctxConn struct {
	Conn
	stop func() bool
}

func (c *ctxConn) Close() error {
	c.stop()
	err := c.Conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
