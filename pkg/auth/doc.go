// Package auth gates HTTP requests behind pluggable authenticators.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Rejected requests receive 401 with a Basic challenge so browsers and
// reverse proxies prompt for credentials again.
package auth
