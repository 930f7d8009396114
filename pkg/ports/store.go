package ports

import (
	"context"

	"github.com/kitewire/consentflow/pkg/domain"
)

// SessionStore holds live journey sessions keyed by consent handle ID.
// Sessions are transient: implementations are in-memory maps or TTL-bounded
// caches, never durable storage. A lost session restarts the whole journey.
type SessionStore interface {
	// Save stores the session snapshot for its consent handle ID.
	Save(ctx context.Context, consentHandleID string, session *domain.JourneySession) error

	// Load retrieves the session for a consent handle ID.
	// Returns domain.ErrSessionNotFound if no journey is active for it.
	Load(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)

	// Delete discards the session for a consent handle ID.
	Delete(ctx context.Context, consentHandleID string) error

	// List returns the consent handle IDs of all active journeys.
	List(ctx context.Context) ([]string, error)
}
