package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates journey access across orchestrator replicas
// sharing an ephemeral session store. A journey's events must be serialized
// even when replicas receive them from different presentation instances.
type DistributedLocker interface {
	// Lock acquires a distributed lock for the given key (the consent
	// handle ID). It blocks until the lock is acquired, the context is
	// canceled, or the TTL expires (implementation specific).
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
