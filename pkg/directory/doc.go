// Package directory describes the LDAP directory a request authenticates
// against and the capability the gateway uses to talk to it.
//
// Directory settings are resolved per request: each value is taken from an
// HTTP header when the caller sends one, otherwise from the process
// environment. This lets a single gateway front several directories, with
// the reverse proxy in front of it selecting the tenant through headers.
//
// The Capability interface is the only way the decision engine reaches the
// directory. The go-ldap backed implementation lives in the ldap
// subpackage; tests substitute their own.
package directory
