package transport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+":before")
				next.ServeHTTP(w, r)
				order = append(order, name+":after")
			})
		}
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	wrapped := Chain(mw("first"), mw("second"), mw("third"))(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	wrapped := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Errorf("panic not logged:\n%s", buf.String())
	}
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	wrapped := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	wrapped := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string
	wrapped := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if capturedID == "" {
		t.Fatal("expected request ID to be generated")
	}
	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("expected a UUID, got %q: %v", capturedID, err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != capturedID {
		t.Errorf("response header = %q, want %q", got, capturedID)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string
	wrapped := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "existing-id-123")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
	if got := rec.Header().Get(RequestIDHeader); got != "existing-id-123" {
		t.Errorf("response header = %q", got)
	}
}

func TestRequestIDReplacesInvalid(t *testing.T) {
	tests := []string{
		"has space",
		"line\nbreak",
		strings.Repeat("a", maxRequestIDLen+1),
	}

	for _, incoming := range tests {
		var capturedID string
		wrapped := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedID = RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header[RequestIDHeader] = []string{incoming}
		wrapped.ServeHTTP(httptest.NewRecorder(), req)

		if capturedID == incoming || capturedID == "" {
			t.Errorf("incoming %q was not replaced (got %q)", incoming, capturedID)
		}
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	wrapped := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids[RequestIDFromContext(r.Context())] = true
	}))

	for i := 0; i < 100; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("nope"))
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-log-test"))
	Logging(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	output := buf.String()
	for _, expected := range []string{
		"request_id=req-log-test", "method=GET", "path=/protected",
		"status=401", "bytes=4", "request completed",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingDefaultsStatusOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("expected status=200 in:\n%s", buf.String())
	}
}

func TestLoggingErrorLevelOn5xx(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/readyz", nil))

	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error level in:\n%s", buf.String())
	}
}
