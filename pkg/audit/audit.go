// Package audit records authentication decisions.
//
// Events carry decision metadata only. Secrets, fingerprints and manager
// credentials never reach a Recorder.
package audit

import (
	"context"
	"time"
)

// Outcome values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Event describes one authentication decision.
type Event struct {
	Time       time.Time
	RequestID  string
	Identity   string
	RemoteAddr string
	// Endpoint is the directory endpoint the decision was made against.
	// Empty when configuration could not be resolved.
	Endpoint string
	Outcome  string
	// Reason names the rejection kind. Empty for accepted decisions.
	Reason   string
	CacheHit bool
}

// Recorder persists decision events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) error { return nil }

// RequestInfo identifies the HTTP request a decision belongs to.
type RequestInfo struct {
	RequestID  string
	RemoteAddr string
}

type requestInfoKey struct{}

// WithRequestInfo attaches request metadata for the events recorded while
// handling ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the metadata attached by WithRequestInfo, or the
// zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
