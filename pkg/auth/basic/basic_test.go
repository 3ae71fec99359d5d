package basic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/ldapgate/pkg/audit"
	"github.com/rhuss/ldapgate/pkg/auth"
	"github.com/rhuss/ldapgate/pkg/directory"
	"github.com/rhuss/ldapgate/pkg/transport"
)

// fakeDecider accepts a single identity/secret pair and records the last call.
type fakeDecider struct {
	identity, secret string

	calls       int
	gotIdentity string
	gotHeaders  http.Header
	gotInfo     audit.RequestInfo
}

func (f *fakeDecider) Decide(ctx context.Context, identity, secret string, headers http.Header) bool {
	f.calls++
	f.gotIdentity = identity
	f.gotHeaders = headers
	f.gotInfo = audit.RequestInfoFrom(ctx)
	return identity == f.identity && secret == f.secret
}

func TestAuthenticate_NoHeader_Abstains(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	a := New(d)

	req := httptest.NewRequest("GET", "/", nil)
	result := a.Authenticate(req.Context(), req)

	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain", result.Decision)
	}
	if d.calls != 0 {
		t.Error("decider should not be called without credentials")
	}
}

func TestAuthenticate_BearerScheme_Abstains(t *testing.T) {
	a := New(&fakeDecider{})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	result := a.Authenticate(req.Context(), req)

	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain", result.Decision)
	}
}

func TestAuthenticate_Malformed_No(t *testing.T) {
	d := &fakeDecider{}
	a := New(d)

	for _, header := range []string{"Basic !!!not-base64", "Basic bm9jb2xvbg=="} { // second is "nocolon"
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", header)
		result := a.Authenticate(req.Context(), req)

		if result.Decision != auth.No {
			t.Errorf("%q: Decision = %v, want No", header, result.Decision)
		}
	}
	if d.calls != 0 {
		t.Error("malformed credentials should not reach the decider")
	}
}

func TestAuthenticate_Valid_Yes(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	a := New(d)

	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("alice", "pw1")
	req.Header.Set(directory.HeaderEndpoint, "ldap://tenant.example.org")
	req.RemoteAddr = "192.0.2.10:5555"
	ctx := transport.ContextWithRequestID(req.Context(), "req-42")

	result := a.Authenticate(ctx, req)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if result.Identity == nil || result.Identity.Subject != "alice" {
		t.Errorf("Identity = %+v, want subject alice", result.Identity)
	}
	if got := d.gotHeaders.Get(directory.HeaderEndpoint); got != "ldap://tenant.example.org" {
		t.Errorf("headers not forwarded, endpoint = %q", got)
	}
	if d.gotInfo.RequestID != "req-42" || d.gotInfo.RemoteAddr != "192.0.2.10:5555" {
		t.Errorf("request info = %+v", d.gotInfo)
	}
}

func TestAuthenticate_LowercaseScheme(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	a := New(d)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "basic YWxpY2U6cHcx") // alice:pw1
	result := a.Authenticate(req.Context(), req)

	if result.Decision != auth.Yes {
		t.Errorf("Decision = %v, want Yes", result.Decision)
	}
}

func TestAuthenticate_Rejected_No(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	a := New(d)

	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("alice", "wrong")
	result := a.Authenticate(req.Context(), req)

	if result.Decision != auth.No {
		t.Errorf("Decision = %v, want No", result.Decision)
	}
	if result.Err != auth.ErrUnauthenticated {
		t.Errorf("Err = %v, want ErrUnauthenticated", result.Err)
	}
}

func TestAuthenticate_EmptyPasswordStillAsksDecider(t *testing.T) {
	d := &fakeDecider{identity: "bob", secret: ""}
	a := New(d)

	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("bob", "")
	a.Authenticate(req.Context(), req)

	if d.calls != 1 || d.gotIdentity != "bob" {
		t.Errorf("decider calls = %d identity = %q", d.calls, d.gotIdentity)
	}
}

func TestChain_NoCredentialsFallsBackToDefaultNo(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{New(d)}, DefaultDecision: auth.No}

	tests := []struct {
		name   string
		header string
	}{
		{"no authorization header", ""},
		{"bearer token", "Bearer abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			result := chain.Authenticate(req.Context(), req)
			if result.Decision != auth.No {
				t.Errorf("Decision = %v, want No", result.Decision)
			}
			if result.Err != auth.ErrUnauthenticated {
				t.Errorf("Err = %v, want ErrUnauthenticated", result.Err)
			}
			if result.Identity != nil {
				t.Errorf("Identity = %+v, want nil", result.Identity)
			}
		})
	}
	if d.calls != 0 {
		t.Errorf("decider calls = %d, want 0 without Basic credentials", d.calls)
	}
}

func TestMiddlewareIntegration(t *testing.T) {
	d := &fakeDecider{identity: "alice", secret: "pw1"}
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{New(d)}, DefaultDecision: auth.No}
	handler := auth.Middleware(chain, nil, auth.DefaultBypassEndpoints, "ldapgate")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(auth.SubjectFromContext(r.Context())))
		}))

	tests := []struct {
		name     string
		user     string
		pass     string
		setAuth  bool
		wantCode int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "alice", "nope", true, http.StatusUnauthorized},
		{"valid", "alice", "pw1", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing Basic challenge")
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != "alice" {
				t.Errorf("body = %q, want alice", rec.Body.String())
			}
		})
	}
}
