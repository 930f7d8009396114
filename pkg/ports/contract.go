package ports

import (
	"context"
	"testing"
	"time"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	handleID := "contract-test-handle-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(handleID)
		session.Stage = domain.StageLoggingIn
		session.Credentials = &domain.Credentials{Username: "alice", Mobile: "9999999999"}

		err := store.Save(ctx, handleID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, handleID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.Stage, loaded.Stage)
		require.NotNil(t, loaded.Credentials)
		assert.Equal(t, "alice", loaded.Credentials.Username)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		session := domain.NewSession(handleID)
		session.AccountsToLink["acc-1"] = true
		require.NoError(t, store.Save(ctx, handleID, session))

		first, err := store.Load(ctx, handleID)
		require.NoError(t, err)
		first.AccountsToLink["acc-2"] = true

		second, err := store.Load(ctx, handleID)
		require.NoError(t, err)
		assert.False(t, second.AccountsToLink["acc-2"], "mutating a loaded session must not leak into the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+handleID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, handleID, domain.NewSession(handleID))
		require.NoError(t, err)

		err = store.Delete(ctx, handleID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, handleID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := handleID + "-1"
		id2 := handleID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1))
		_ = store.Save(ctx, id2, domain.NewSession(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
