// Package decision turns a pair of Basic credentials into an accept or
// reject decision.
//
// The Engine resolves the directory configuration for the request, applies
// the required-group check, consults the credential cache and only then
// asks the directory to authenticate. Every failure is fail-closed: callers
// get false and the reason is only visible in logs, metrics and the audit
// trail.
package decision
