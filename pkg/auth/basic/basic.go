// Package basic provides an authenticator for HTTP Basic credentials.
// The credentials are handed to a decision engine together with the
// request headers, which carry the per-request directory settings.
package basic

import (
	"context"
	"net/http"
	"strings"

	"github.com/rhuss/ldapgate/pkg/audit"
	"github.com/rhuss/ldapgate/pkg/auth"
	"github.com/rhuss/ldapgate/pkg/transport"
)

const prefix = "Basic "

// Decider accepts or rejects a pair of credentials.
// *decision.Engine satisfies it.
type Decider interface {
	Decide(ctx context.Context, identity, secret string, headers http.Header) bool
}

// Authenticator votes on requests carrying an Authorization: Basic header.
type Authenticator struct {
	decider Decider
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates a Basic authenticator backed by d.
func New(d Decider) *Authenticator {
	return &Authenticator{decider: d}
}

// Authenticate returns Abstain when the request has no Basic credentials,
// No when they are malformed or rejected, and Yes when accepted.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	ctx = audit.WithRequestInfo(ctx, audit.RequestInfo{
		RequestID:  transport.RequestIDFromContext(ctx),
		RemoteAddr: r.RemoteAddr,
	})

	if !a.decider.Decide(ctx, username, password, r.Header) {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: username},
	}
}
