package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/kitewire/consentflow/internal/logging"
	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/kitewire/consentflow/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu     sync.Mutex
	refs   int
	unlock ports.UnlockFunc // Function to release distributed lock (if any)
}

// Manager orchestrates journey session access, ensuring safe concurrent
// operations. It uses Reference Counting to garbage collect unused locks.
//
// Holding a session's lock is what serializes that journey's AA client
// calls: no two external calls for the same session are ever in flight at
// once.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger            // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given session store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, id string) (*domain.JourneySession, error) {
	var session *domain.JourneySession
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, id)
		return err
	})
	return session, err
}

// LoadOrStart tries to load a session. If not found, it initializes a new
// journey for the consent handle at the initializing stage.
func (m *Manager) LoadOrStart(ctx context.Context, id string) (*domain.JourneySession, error) {
	var session *domain.JourneySession
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, id)
		if err == nil {
			return nil
		}

		if err != domain.ErrSessionNotFound {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		// Not found, create new
		session = domain.NewSession(id)

		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, id, session); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return session, err
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, id string, session *domain.JourneySession) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Save(ctx, id, session)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	return m.withDistributedLock(ctx, id, fn)
}

// TryWithLock executes fn only if the session's lock is free, returning
// false without running fn when another operation is already in flight.
// This is how duplicate submissions are dropped instead of queued: racing
// a second AA client call would issue two live OTP challenges or two link
// references for the same journey.
func (m *Manager) TryWithLock(ctx context.Context, id string, fn func(context.Context) error) (bool, error) {
	entry := m.acquire(id)
	if !entry.mu.TryLock() {
		m.release(id)
		return false, nil
	}
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	return true, m.withDistributedLock(ctx, id, fn)
}

func (m *Manager) withDistributedLock(ctx context.Context, id string, fn func(context.Context) error) error {
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"consent_handle_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
