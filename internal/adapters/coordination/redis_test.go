package coordination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
)

var (
	_ ports.Coordinator = (*RedisCoordinator)(nil)
	_ ports.Coordinator = NopCoordinator{}
)

func setup(t *testing.T) (*miniredis.Miniredis, *RedisCoordinator) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := NewRedisCoordinator(mr.Addr(), "", 0, nil)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCoordinator_Lock(t *testing.T) {
	mr, c := setup(t)
	ctx := context.Background()

	release, err := c.Acquire(ctx, 3)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !mr.Exists(LockKey(3)) {
		t.Fatalf("Expected lock key to be set")
	}

	// 1. A second holder is refused
	if _, err := c.Acquire(ctx, 3); !errors.Is(err, domain.ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}

	// 2. Other run ids are independent
	other, err := c.Acquire(ctx, 4)
	if err != nil {
		t.Errorf("Acquire of another run failed: %v", err)
	} else {
		_ = other(ctx)
	}

	// 3. Release frees the run id and is idempotent
	if err := release(ctx); err != nil {
		t.Errorf("release failed: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Errorf("second release failed: %v", err)
	}
	if mr.Exists(LockKey(3)) {
		t.Errorf("Expected lock key to be removed")
	}
	again, err := c.Acquire(ctx, 3)
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	_ = again(ctx)
}

func TestRedisCoordinator_ReleaseKeepsForeignLock(t *testing.T) {
	mr, c := setup(t)
	ctx := context.Background()

	release, err := c.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// Simulate expiry and takeover by another process.
	mr.Del(LockKey(1))
	if err := mr.Set(LockKey(1), "someone-else"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Errorf("release failed: %v", err)
	}
	if got, _ := mr.Get(LockKey(1)); got != "someone-else" {
		t.Errorf("Foreign lock was modified: %q", got)
	}
}

func TestRedisCoordinator_LockExpiry(t *testing.T) {
	mr, c := setup(t)
	if err := c.SetLockTTL(time.Hour); err != nil {
		t.Fatalf("SetLockTTL failed: %v", err)
	}
	ctx := context.Background()

	release, err := c.Acquire(ctx, 2)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer func() { _ = release(ctx) }()

	if ttl := mr.TTL(LockKey(2)); ttl != time.Hour {
		t.Errorf("Expected TTL of one hour, got %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := c.Acquire(ctx, 2); err != nil {
		t.Errorf("Expected expired lock to be acquirable, got %v", err)
	}
}

func TestRedisCoordinator_Publish(t *testing.T) {
	_, c := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := c.Subscribe(ctx)
	// Wait for the subscription to be registered before publishing.
	time.Sleep(50 * time.Millisecond)

	diffs := []domain.DifferenceReport{{QueryName: "a.campus.edu.", QueryType: "A", Groups: []domain.GroupReport{
		{Servers: "bind ", Response: domain.ResponseBody{Literal: domain.NoResponseText}},
	}}}
	if err := c.PublishDifferences(ctx, "42", diffs); err != nil {
		t.Fatalf("PublishDifferences failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.TestID != "42" || len(ev.Differences) != 1 || ev.Differences[0].QueryName != "a.campus.edu." {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	for range events {
	}
}

func TestRedisCoordinator_Ping(t *testing.T) {
	mr, c := setup(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	mr.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Errorf("Expected ping to fail after shutdown")
	}
}

func TestNopCoordinator(t *testing.T) {
	var c NopCoordinator
	ctx := context.Background()
	release, err := c.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Errorf("release failed: %v", err)
	}
	if err := c.PublishDifferences(ctx, "1", nil); err != nil {
		t.Errorf("PublishDifferences failed: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisCoordinator_SetLockTTLRejectsShortTTL(t *testing.T) {
	mr, c := setup(t)
	for _, ttl := range []time.Duration{0, -time.Second, 2 * time.Nanosecond, MinLockTTL - 1} {
		if err := c.SetLockTTL(ttl); err == nil {
			t.Errorf("Expected error for TTL %s", ttl)
		}
	}

	ctx := context.Background()
	release, err := c.Acquire(ctx, 4)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if ttl := mr.TTL(LockKey(4)); ttl != DefaultLockTTL {
		t.Errorf("Expected default TTL %s, got %s", DefaultLockTTL, ttl)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}
