package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kitewire/consentflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key

	// Unique-ish value so only the holder can release.
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	attempt := func() (bool, error) {
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		return success, nil
	}
	unlock := func(ctx context.Context) error {
		// Safe Unlock using Lua script to check value match
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		return l.client.Eval(ctx, script, []string{lockKey}, val).Err()
	}

	// First attempt happens immediately; the uncontended path never waits
	// out a poll interval.
	success, err := attempt()
	if err != nil {
		return nil, err
	}
	if success {
		return unlock, nil
	}

	// Polling loop until acquired or the context gives up.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			success, err := attempt()
			if err != nil {
				return nil, err
			}
			if success {
				return unlock, nil
			}
			// Retry...
		}
	}
}
