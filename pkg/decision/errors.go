package decision

import (
	"errors"
	"fmt"

	"github.com/rhuss/ldapgate/pkg/directory"
)

// Rejection kinds. Every rejected Result carries an error matching exactly
// one of these (ErrDirectoryUnavailable also matches ErrDirectoryAuthFailed).
var (
	ErrEmptyCredentials    = errors.New("empty identity or secret")
	ErrConfigMissing       = directory.ErrConfigMissing
	ErrGroupCheckFailed    = errors.New("required group check failed")
	ErrDirectoryAuthFailed = errors.New("directory authentication failed")

	// ErrDirectoryUnavailable reports a directory that could not be
	// consulted. Callers see it as a failed authentication.
	ErrDirectoryUnavailable = fmt.Errorf("%w: directory unavailable", ErrDirectoryAuthFailed)
)

// Reason returns the short name of the rejection kind err belongs to,
// used for log attributes, metric labels and audit events.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCredentials):
		return "empty_credentials"
	case errors.Is(err, ErrConfigMissing):
		return "config_missing"
	case errors.Is(err, ErrGroupCheckFailed):
		return "group_check_failed"
	case errors.Is(err, ErrDirectoryUnavailable):
		return "directory_unavailable"
	case errors.Is(err, ErrDirectoryAuthFailed):
		return "directory_auth_failed"
	default:
		return "internal"
	}
}
