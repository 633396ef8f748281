package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
)

// FakeDriver implements ports.ServerDriver and records its calls.
type FakeDriver struct {
	mu       sync.Mutex
	Requests []ports.ServeRequest
	Restarts int
	Stopped  bool
	Fail     bool
}

func (d *FakeDriver) EnsureServing(_ context.Context, req ports.ServeRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requests = append(d.Requests, req)
	if req.ForceRestart {
		d.Restarts++
	}
	if d.Fail {
		return errors.New("container failed to start")
	}
	return nil
}

func (d *FakeDriver) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Stopped = true
	return nil
}

// RestartCount returns the number of forced restarts so far.
func (d *FakeDriver) RestartCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Restarts
}

// ScriptedQuerier implements ports.Querier. Each implementation answers
// from its script in order and repeats the last entry once exhausted.
type ScriptedQuerier struct {
	mu      sync.Mutex
	Scripts map[string][]domain.ObservedResponse
	Calls   map[string]int
}

func NewScriptedQuerier(scripts map[string][]domain.ObservedResponse) *ScriptedQuerier {
	return &ScriptedQuerier{Scripts: scripts, Calls: map[string]int{}}
}

func (q *ScriptedQuerier) Dispatch(_ context.Context, impl string, _ int, _ domain.Query) domain.ObservedResponse {
	q.mu.Lock()
	defer q.mu.Unlock()
	script := q.Scripts[impl]
	n := q.Calls[impl]
	q.Calls[impl] = n + 1
	if len(script) == 0 {
		return domain.NoResponse()
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n]
}

// CallCount returns how often impl was queried.
func (q *ScriptedQuerier) CallCount(impl string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.Calls[impl]
}

// NopRelease is a lock release that does nothing.
func NopRelease(context.Context) error { return nil }
