// Package idempotency remembers which (ticket, operation, payload) triples
// have already been applied, so byte-identical retries replay instead of
// re-executing.
package idempotency

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// Key identifies one logical operation application.
type Key struct {
	TicketID    string
	Operation   string
	Fingerprint string
}

func (k Key) String() string {
	return "idem:" + k.TicketID + ":" + k.Operation + ":" + k.Fingerprint
}

// Fingerprint hashes a canonical payload encoding for replay detection.
func Fingerprint(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Store tracks applied operations. Implementations may evict; callers treat
// the store as a fast guard, not the source of truth.
type Store interface {
	Seen(ctx context.Context, key Key) (bool, error)
	Record(ctx context.Context, key Key) error
}

// RedisStore persists records with a TTL so replay protection survives
// restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a redis client. A nonpositive ttl defaults to 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Seen(ctx context.Context, key Key) (bool, error) {
	n, err := s.client.Exists(ctx, key.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Record(ctx context.Context, key Key) error {
	return s.client.Set(ctx, key.String(), "1", s.ttl).Err()
}

// MemoryStore keeps records in process memory for tests and DSN-less runs.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) Seen(_ context.Context, key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key.String()]
	return ok, nil
}

func (s *MemoryStore) Record(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key.String()] = struct{}{}
	return nil
}
