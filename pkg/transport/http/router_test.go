package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/ldapgate/pkg/auth"
	"github.com/rhuss/ldapgate/pkg/transport"
)

// staticAuthn accepts exactly one user.
type staticAuthn struct{ user, pass string }

func (a staticAuthn) Authenticate(_ context.Context, r *gohttp.Request) auth.AuthResult {
	u, p, ok := r.BasicAuth()
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if u == a.user && p == a.pass {
		return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{Subject: u}}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func newTestRouter(checks map[string]ReadinessCheck) gohttp.Handler {
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{staticAuthn{user: "alice", pass: "pw1"}},
		DefaultDecision: auth.No,
	}
	return NewRouter(RouterConfig{
		Auth:            auth.Middleware(chain, nil, auth.DefaultBypassEndpoints, "ldapgate"),
		ReadinessChecks: checks,
		MetricsPath:     "/metrics",
	})
}

func serve(h gohttp.Handler, req *gohttp.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_CatchAllRequiresAuth(t *testing.T) {
	h := newTestRouter(nil)

	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"} {
		for _, path := range []string{"/", "/app", "/deeply/nested/path"} {
			rec := serve(h, httptest.NewRequest(method, path, nil))
			if rec.Code != gohttp.StatusUnauthorized {
				t.Errorf("%s %s without credentials: status = %d, want 401", method, path, rec.Code)
			}
			if !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Basic ") {
				t.Errorf("%s %s: missing Basic challenge", method, path)
			}
		}
	}
}

func TestRouter_CatchAllAccepted(t *testing.T) {
	h := newTestRouter(nil)

	for _, method := range []string{"GET", "POST", "DELETE"} {
		req := httptest.NewRequest(method, "/any/path?x=1", nil)
		req.SetBasicAuth("alice", "pw1")
		rec := serve(h, req)

		if rec.Code != gohttp.StatusOK {
			t.Errorf("%s: status = %d, want 200", method, rec.Code)
		}
		if rec.Body.String() != GatewayBody {
			t.Errorf("%s: body = %q, want %q", method, rec.Body.String(), GatewayBody)
		}
	}
}

func TestRouter_WrongPasswordRejected(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("alice", "nope")
	if rec := serve(h, req); rec.Code != gohttp.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_HealthzBypassesAuth(t *testing.T) {
	rec := serve(newTestRouter(nil), httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != gohttp.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestRouter_ReadyzChecks(t *testing.T) {
	healthy := newTestRouter(map[string]ReadinessCheck{
		"audit": func(context.Context) error { return nil },
	})
	if rec := serve(healthy, httptest.NewRequest("GET", "/readyz", nil)); rec.Code != gohttp.StatusOK {
		t.Errorf("healthy readyz: status = %d, want 200", rec.Code)
	}

	failing := newTestRouter(map[string]ReadinessCheck{
		"audit": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := serve(failing, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != gohttp.StatusServiceUnavailable {
		t.Errorf("failing readyz: status = %d, want 503", rec.Code)
	}

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding readyz body: %v", err)
	}
	if body.Checks["audit"] != "connection refused" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestRouter_ReadyzWithoutChecks(t *testing.T) {
	if rec := serve(newTestRouter(nil), httptest.NewRequest("GET", "/readyz", nil)); rec.Code != gohttp.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(nil)
	serve(h, httptest.NewRequest("GET", "/healthz", nil))

	rec := serve(h, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "ldapgate_requests_total") {
		t.Error("metrics output missing ldapgate_requests_total")
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	h := NewRouter(RouterConfig{})

	rec := serve(h, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Body.String() != GatewayBody {
		t.Errorf("with metrics disabled /metrics should fall through to the gateway, got %q", rec.Body.String())
	}
}

func TestRouter_EchoesRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(transport.RequestIDHeader, "trace-abc")

	rec := serve(newTestRouter(nil), req)
	if got := rec.Header().Get(transport.RequestIDHeader); got != "trace-abc" {
		t.Errorf("X-Request-ID = %q, want trace-abc", got)
	}
}
