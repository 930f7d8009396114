// Package redis provides a TTL-bounded session store and a distributed
// locker for running orchestrator replicas against a shared Redis.
//
// The store is ephemeral by construction: every session carries an
// expiration, so an abandoned journey evaporates instead of persisting.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kitewire/consentflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an idle journey survives. Long enough to ride
// out OTP delivery delays, short enough that nothing lingers durably.
const DefaultTTL = 15 * time.Minute

// Store implements ports.SessionStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	cipher *Cipher
}

type Option func(*Store)

// WithTTL overrides the session expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithCipher encrypts session payloads at rest with AES-256-GCM.
func WithCipher(c *Cipher) Option {
	return func(s *Store) {
		s.cipher = c
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "consentflow:journey:",
		ttl:    DefaultTTL,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session to Redis.
func (s *Store) Save(ctx context.Context, id string, session *domain.JourneySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if s.cipher != nil {
		if data, err = s.cipher.seal(data); err != nil {
			return fmt.Errorf("failed to encrypt session: %w", err)
		}
	}

	pipe := s.client.Pipeline()

	// 1. Save JSON with TTL
	pipe.Set(ctx, s.key(id), data, s.ttl)

	// 2. Add to Index (ZSET), score = expiry time for lazy cleanup
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Add(s.ttl).Unix()),
		Member: id,
	})

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return nil
}

// Load retrieves the session from Redis.
func (s *Store) Load(ctx context.Context, id string) (*domain.JourneySession, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	raw := []byte(val)
	if s.cipher != nil {
		var derr error
		if raw, derr = s.cipher.open(raw); derr != nil {
			return nil, fmt.Errorf("failed to decrypt session: %w", derr)
		}
	}

	var session domain.JourneySession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.AccountsToLink == nil {
		session.AccountsToLink = make(map[string]bool)
	}
	if session.ConsentAccountSelection == nil {
		session.ConsentAccountSelection = make(map[string]bool)
	}

	return &session, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns active journeys using ZSET lazy cleanup.
func (s *Store) List(ctx context.Context) ([]string, error) {
	// Lazy Cleanup: remove expired entries from the index
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
