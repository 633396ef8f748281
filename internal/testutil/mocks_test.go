package testutil

import (
	"context"
	"testing"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
)

func TestFakes(t *testing.T) {
	ctx := context.Background()

	d := &FakeDriver{}
	_ = d.EnsureServing(ctx, ports.ServeRequest{})
	_ = d.EnsureServing(ctx, ports.ServeRequest{ForceRestart: true})
	if d.RestartCount() != 1 {
		t.Errorf("expected 1 restart, got %d", d.RestartCount())
	}
	_ = d.Stop(ctx)
	if !d.Stopped {
		t.Error("expected stopped")
	}
	d.Fail = true
	if err := d.EnsureServing(ctx, ports.ServeRequest{}); err == nil {
		t.Error("expected failure")
	}

	q := NewScriptedQuerier(map[string][]domain.ObservedResponse{
		"bind": {domain.NoResponse(), domain.TransportError("x")},
	})
	query := domain.Query{Name: "a.", Type: "A"}
	if got := q.Dispatch(ctx, "bind", 0, query); got.Kind != domain.KindNoResponse {
		t.Error("expected first scripted response")
	}
	for i := 0; i < 2; i++ {
		if got := q.Dispatch(ctx, "bind", 0, query); got.Kind != domain.KindTransportError {
			t.Error("expected last scripted response to repeat")
		}
	}
	if q.CallCount("bind") != 3 {
		t.Errorf("expected 3 calls, got %d", q.CallCount("bind"))
	}
	if got := q.Dispatch(ctx, "nsd", 0, query); got.Kind != domain.KindNoResponse {
		t.Error("expected no response for unscripted implementation")
	}
}
