package memory_test

import (
	"testing"

	"github.com/kitewire/consentflow/pkg/adapters/memory"
	"github.com/kitewire/consentflow/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}
