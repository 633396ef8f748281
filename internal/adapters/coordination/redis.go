package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DifferencesChannel = "dnsdiff:differences"
	lockPrefix         = "dnsdiff:lock:run:"
	DefaultLockTTL     = 2 * time.Minute
	MinLockTTL         = 30 * time.Millisecond
)

// Both scripts act only while the key still holds our token, so an expired
// lock taken over by another process is never touched.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// DifferenceEvent is published once per test that produced differences.
type DifferenceEvent struct {
	TestID      string                    `json:"test_id"`
	Differences []domain.DifferenceReport `json:"differences"`
}

// RedisCoordinator implements ports.Coordinator on top of Redis.
type RedisCoordinator struct {
	client  *redis.Client
	lockTTL time.Duration
	logger  *slog.Logger
}

func NewRedisCoordinator(addr string, password string, db int, logger *slog.Logger) *RedisCoordinator {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCoordinator{client: rdb, lockTTL: DefaultLockTTL, logger: logger}
}

// SetLockTTL changes the expiry of run locks. A held lock is refreshed every
// third of the TTL.
func (r *RedisCoordinator) SetLockTTL(ttl time.Duration) error {
	if ttl < MinLockTTL {
		return fmt.Errorf("lock TTL %s is below the minimum of %s", ttl, MinLockTTL)
	}
	r.lockTTL = ttl
	return nil
}

func LockKey(runID int) string {
	return fmt.Sprintf("%s%d", lockPrefix, runID)
}

// Acquire takes the lock of runID or fails with domain.ErrLocked. The lock is
// kept alive until release is called.
func (r *RedisCoordinator) Acquire(ctx context.Context, runID int) (func(context.Context) error, error) {
	key := LockKey(runID)
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run %d", domain.ErrLocked, runID)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(key, token, stop)
	}()

	var once sync.Once
	release := func(ctx context.Context) error {
		var errRelease error
		once.Do(func() {
			close(stop)
			wg.Wait()
			errRelease = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
		})
		return errRelease
	}
	return release, nil
}

func (r *RedisCoordinator) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := refreshScript.Run(context.Background(), r.client, []string{key}, token, r.lockTTL.Milliseconds()).Int()
			if err != nil {
				r.logger.Warn("failed to refresh run lock", "key", key, "error", err)
				continue
			}
			if n == 0 {
				r.logger.Error("run lock lost", "key", key)
				return
			}
		}
	}
}

func (r *RedisCoordinator) PublishDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error {
	payload, err := json.Marshal(DifferenceEvent{TestID: testID, Differences: diffs})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, DifferencesChannel, payload).Err()
}

// Subscribe returns a channel of decoded difference events. It is closed when
// ctx is done.
func (r *RedisCoordinator) Subscribe(ctx context.Context) <-chan DifferenceEvent {
	pubsub := r.client.Subscribe(ctx, DifferencesChannel)
	out := make(chan DifferenceEvent)
	go func() {
		defer close(out)
		defer func() {
			if errClose := pubsub.Close(); errClose != nil {
				r.logger.Warn("failed to close subscription", "error", errClose)
			}
		}()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev DifferenceEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("dropping malformed difference event", "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *RedisCoordinator) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCoordinator) Close() error {
	return r.client.Close()
}

// NopCoordinator is used when no Redis is configured. Locks always succeed
// and events are dropped.
type NopCoordinator struct{}

func (NopCoordinator) Acquire(context.Context, int) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func (NopCoordinator) PublishDifferences(context.Context, string, []domain.DifferenceReport) error {
	return nil
}

func (NopCoordinator) Ping(context.Context) error { return nil }
