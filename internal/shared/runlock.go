package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy indicates another runner currently holds the lock.
var ErrLockBusy = errors.New("run already in progress")

// PlannerLockKey builds the redis key serialising replenishment runs for an
// organization.
func PlannerLockKey(accountID string) string {
	return fmt.Sprintf("planner:%s:lock", accountID)
}

// RunLock serialises batch runs across processes using a redis SET NX lease.
// The TTL bounds how long a crashed runner can block the next run.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock constructs a RunLock.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Acquire takes the lock and returns a release function. Release only deletes
// the key when the lease token still matches, so an expired lease can never
// release a successor's lock.
func (l *RunLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("run lock not configured")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("run lock acquire: %w", err)
	}
	if !ok {
		return nil, ErrLockBusy
	}
	release := func(ctx context.Context) error {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		return l.client.Eval(ctx, script, []string{key}, token).Err()
	}
	return release, nil
}
