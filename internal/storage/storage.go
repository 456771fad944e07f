package storage

import (
	"context"
	"sync"
	"time"
)

// CounterStore increments expiring counters. The TTL is applied when a key is
// created and left alone on later increments.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type counter struct {
	value     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. Expired keys are dropped on access
// and by a sweep every sweepEvery increments.
type MemoryStore struct {
	counters map[string]*counter
	mu       sync.Mutex
	now      func() time.Time
	ops      int
}

const sweepEvery = 1024

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ops++
	if s.ops%sweepEvery == 0 {
		s.sweep(now)
	}

	c, exists := s.counters[key]
	if !exists || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.value++
	return c.value, nil
}

// Len reports how many live counters are held
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.counters)
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}
}
