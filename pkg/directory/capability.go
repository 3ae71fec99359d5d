package directory

import (
	"context"
	"errors"
)

// ErrUnavailable wraps failures to reach or understand the directory:
// dial errors, timeouts, protocol errors and unexpected search results.
var ErrUnavailable = errors.New("directory unavailable")

// Capability performs the directory checks for one request.
//
// A Capability is created per request from a resolved Config, so
// implementations need not be safe for concurrent use.
type Capability interface {
	// BindAs stages the credentials of the user being authenticated.
	// It performs no I/O.
	BindAs(identity, secret string)

	// Authenticate confirms that the staged identity exists under the
	// configured search base and filters and that its secret is valid.
	// Rejected credentials return (false, nil); an error means the
	// directory could not give an answer and wraps ErrUnavailable.
	Authenticate(ctx context.Context) (bool, error)

	// HasRequiredGroups reports whether the staged identity's group
	// memberships satisfy groups. An empty list is always satisfied.
	// How several groups combine (all or any) is up to the implementation.
	HasRequiredGroups(ctx context.Context, groups []string) (bool, error)
}

// Factory creates a Capability for a resolved configuration.
type Factory func(cfg Config) Capability
