package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/ldapgate/pkg/observability"
)

// DefaultRealm is used in the Basic challenge when none is configured.
const DefaultRealm = "ldapgate"

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, challenges rejected
// requests for Basic credentials, and optionally enforces rate limits.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string, realm string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}
	challenge := Challenge(realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Debug("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"decision", result.Decision,
					"error", result.Err,
				)
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
					)
					observability.RateLimitRejectedTotal.Inc()
					w.Header().Set("Retry-After", "60")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Challenge builds the WWW-Authenticate value for realm.
func Challenge(realm string) string {
	if realm == "" {
		realm = DefaultRealm
	}
	realm = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(realm)
	return fmt.Sprintf(`Basic realm="%s", charset="UTF-8"`, realm)
}
