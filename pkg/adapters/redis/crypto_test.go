package redis

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitewire/consentflow/pkg/domain"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func encryptedStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client, opts...), mr
}

func sessionWithPII(id string) *domain.JourneySession {
	s := domain.NewSession(id)
	s.Stage = domain.StageAwaitingLoginOTP
	s.Credentials = &domain.Credentials{Username: "ravi", Mobile: "9876543210"}
	return s
}

func TestNewCipher_RejectsBadKeys(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)

	_, err = NewCipher(testKey(1), []byte("short"))
	assert.Error(t, err)

	_, err = NewCipher(testKey(1), testKey(2))
	assert.NoError(t, err)
}

func TestStore_EncryptedRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testKey(1))
	require.NoError(t, err)
	store, mr := encryptedStore(t, WithCipher(cipher))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "enc-1", sessionWithPII("enc-1")))

	loaded, err := store.Load(ctx, "enc-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.Credentials)
	assert.Equal(t, "9876543210", loaded.Credentials.Mobile)

	// The raw value in Redis must not leak the mobile number.
	raw, err := mr.Get("consentflow:journey:enc-1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "9876543210")
	assert.NotContains(t, raw, "ravi")
}

func TestStore_KeyRotation(t *testing.T) {
	oldCipher, err := NewCipher(testKey(1))
	require.NoError(t, err)
	store, mr := encryptedStore(t, WithCipher(oldCipher))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "rot-1", sessionWithPII("rot-1")))

	// Rotate: new active key, old key demoted to fallback.
	rotated, err := NewCipher(testKey(2), testKey(1))
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rotatedStore := NewFromClient(client, WithCipher(rotated))

	loaded, err := rotatedStore.Load(ctx, "rot-1")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", loaded.Credentials.Mobile)

	// Without the fallback the old payload is unreadable.
	newOnly, err := NewCipher(testKey(2))
	require.NoError(t, err)
	client2 := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client2.Close() })
	_, err = NewFromClient(client2, WithCipher(newOnly)).Load(ctx, "rot-1")
	assert.Error(t, err)
}
