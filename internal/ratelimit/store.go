// File: internal/ratelimit/store.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the shared usage-counter backend. Incr must be a
// single atomic read-modify-write: two tabs racing on the same key
// must observe distinct counts.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounterStore backs the limiter with Redis INCR, which is
// atomic across processes.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// The window id is baked into the key; the TTL only garbage
	// collects rolled-over buckets.
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is an in-process store for tests and single-node
// development setups.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	stopCh   chan struct{}
}

func NewMemoryCounterStore() *MemoryCounterStore {
	s := &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		stopCh:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// cleanupLoop periodically removes expired counters.
func (s *MemoryCounterStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryCounterStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryCounterStore) Close() {
	close(s.stopCh)
}
