package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kitewire/consentflow/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()
	key := "handle-1"

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, key, 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:lock:handle-1"), "Lock key should be set in Redis")

	// 2. Release Lock
	err = unlock(ctx)
	assert.NoError(t, err)

	assert.False(t, mr.Exists("test:lock:lock:handle-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_UncontendedAcquiresWithoutPolling(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker := redis.NewLocker(client, "test:lock:")

	// A deadline shorter than the poll interval: the free lock must be
	// taken on the immediate first attempt, not after a ticker cycle.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	unlock, err := locker.Lock(ctx, "fresh-handle", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock)
	assert.NoError(t, unlock(context.Background()))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	locker1 := redis.NewLocker(client, "test:lock:")
	locker2 := redis.NewLocker(client, "test:lock:") // Same prefix -> contention
	ctx := context.Background()
	key := "shared-handle"

	// 1. Replica 1 acquires lock
	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock1)

	// 2. Replica 2 tries to acquire; the polling loop blocks until the
	// context times out while replica 1 holds the lock.
	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 100*time.Millisecond, "Should block until timeout")

	// 3. Replica 1 unlocks
	err = unlock1(ctx)
	assert.NoError(t, err)

	// 4. Replica 2 tries again (should succeed)
	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	assert.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:lock:shared-handle"))
}
