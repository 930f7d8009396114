package ports_test

import (
	"context"
	"testing"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// MockStore is a minimal SessionStore used to exercise the exported contract
// suite itself. Adapter packages run the same suite against real backends.
type MockStore struct {
	data map[string]*domain.JourneySession
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.JourneySession),
	}
}

func (m *MockStore) Save(ctx context.Context, id string, session *domain.JourneySession) error {
	m.data[id] = session.Clone()
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.JourneySession, error) {
	session, ok := m.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	delete(m.data, id)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewMockStore())
}
