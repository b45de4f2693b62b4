package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RunLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRunLock(client, time.Minute), mr
}

func TestRunLockAcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()
	key := PlannerLockKey("acme")

	release, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockBusy)

	require.NoError(t, release(ctx))

	release, err = lock.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRunLockReleaseOnlyOwnLease(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()
	key := PlannerLockKey("acme")

	release, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	// Simulate lease expiry followed by a new holder.
	mr.FastForward(2 * time.Minute)
	release2, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	// The stale release must not remove the new holder's lease.
	require.NoError(t, release(ctx))
	_, err = lock.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockBusy)

	require.NoError(t, release2(ctx))
}
