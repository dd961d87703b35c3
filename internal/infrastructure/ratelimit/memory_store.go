package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
)

// MemoryCounterStore implements the counter store in process memory for
// deployments without a shared Redis. Entries expire exactly one window after
// creation; go-cache's janitor reclaims them. Counts are per instance only.
type MemoryCounterStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

var _ service.CounterStore = (*MemoryCounterStore)(nil)

// NewMemoryCounterStore creates an in-memory counter store. cleanupInterval
// controls how often expired entries are reclaimed; zero disables the
// janitor, leaving expiry checks to reads.
func NewMemoryCounterStore(cleanupInterval time.Duration) *MemoryCounterStore {
	return &MemoryCounterStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Increment increments the counter for key, creating it with the window TTL
// if absent or expired. The mutex makes create-or-increment atomic within the
// process, mirroring what the Lua script guarantees on Redis.
func (s *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, expiresAt, found := s.cache.GetWithExpiration(key); found {
		count, err := s.cache.IncrementInt64(key, 1)
		if err == nil {
			return count, expiresAt, nil
		}
		// Expired between the read and the increment: fall through to a
		// fresh window.
	}

	resetAt := time.Now().Add(window)
	s.cache.Set(key, int64(1), window)
	return 1, resetAt, nil
}

// Reset clears the counter for key.
func (s *MemoryCounterStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key)
	return nil
}
