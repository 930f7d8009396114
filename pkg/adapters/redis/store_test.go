package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kitewire/consentflow/pkg/adapters/redis"
	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	// Create store with 1s TTL
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	id := "handle-ttl"
	session := domain.NewSession(id)
	session.Stage = domain.StageLoggingIn

	// 1. Save
	err = store.Save(ctx, id, session)
	assert.NoError(t, err)

	// 2. Verify List (immediately)
	ids, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, ids, id)

	// 3. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 4. Verify Load (should fail)
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// 5. Verify List (lazily cleaned up). The prune score comes from
	// time.Now(), so wait past the TTL in wall-clock time too.
	time.Sleep(1200 * time.Millisecond)

	ids, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	id := "my-journey"

	err = store.Save(ctx, id, domain.NewSession(id))
	assert.NoError(t, err)

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:my-journey"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, id)
}

func TestRedisStore_RoundTripPreservesSelections(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client)
	ctx := context.Background()
	id := "handle-roundtrip"

	session := domain.NewSession(id)
	session.Stage = domain.StageVerifyingLinkingOTP
	session.AccountsToLink["acc-1"] = true
	session.LinkReference = "link-ref-9"
	session.LinkingOTP = &domain.OTPChallenge{Reference: "link-ref-9", AttemptCount: 1}

	assert.NoError(t, store.Save(ctx, id, session))

	loaded, err := store.Load(ctx, id)
	assert.NoError(t, err)
	assert.True(t, loaded.AccountsToLink["acc-1"])
	assert.Equal(t, "link-ref-9", loaded.LinkReference)
	assert.NotNil(t, loaded.LinkingOTP)
	assert.Equal(t, 1, loaded.LinkingOTP.AttemptCount)
	assert.NotNil(t, loaded.ConsentAccountSelection, "empty sets must come back usable, not nil")
}
