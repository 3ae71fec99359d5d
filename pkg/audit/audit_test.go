package audit

import (
	"context"
	"testing"
)

func TestRequestInfoRoundTrip(t *testing.T) {
	ctx := WithRequestInfo(context.Background(), RequestInfo{RequestID: "req-1", RemoteAddr: "10.0.0.1:5000"})

	got := RequestInfoFrom(ctx)
	if got.RequestID != "req-1" || got.RemoteAddr != "10.0.0.1:5000" {
		t.Errorf("RequestInfoFrom = %+v", got)
	}
}

func TestRequestInfoFrom_Empty(t *testing.T) {
	if got := RequestInfoFrom(context.Background()); got != (RequestInfo{}) {
		t.Errorf("expected zero RequestInfo, got %+v", got)
	}
}

func TestNopRecord(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Record(context.Background(), Event{Identity: "alice"}); err != nil {
		t.Errorf("Nop.Record returned %v", err)
	}
}
