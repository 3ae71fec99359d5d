// Package transport provides the HTTP middleware shared by every ldapgate
// endpoint: panic recovery, request ID assignment (X-Request-ID) and
// structured access logging via log/slog.
//
// Middleware compose with Chain; the first middleware is the outermost
// wrapper. Routing and server lifecycle live in the http subpackage.
package transport
