package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process sliding-window store. All operations are
// serialized through a single mutex, which also makes the admit-and-record
// step atomic per client.
type MemoryStore struct {
	window      time.Duration
	maxRequests int
	sweepEvery  time.Duration

	mu        sync.Mutex
	clients   map[string][]time.Time
	lastSweep time.Time

	now func() time.Time
}

// NewMemoryStore creates a memory store admitting at most maxRequests per
// client within the trailing window. Idle clients are dropped during
// opportunistic sweeps, at most once per sweepEvery.
func NewMemoryStore(window time.Duration, maxRequests int, sweepEvery time.Duration) *MemoryStore {
	return &MemoryStore{
		window:      window,
		maxRequests: maxRequests,
		sweepEvery:  sweepEvery,
		clients:     make(map[string][]time.Time),
		lastSweep:   time.Now(),
		now:         time.Now,
	}
}

// Admit purges the client's expired timestamps, then either records the
// request or rejects it with the time until the oldest one ages out.
func (s *MemoryStore) Admit(_ context.Context, key string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	cutoff := now.Add(-s.window)
	kept := s.clients[key][:0]
	for _, ts := range s.clients[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.maxRequests {
		s.clients[key] = kept
		// Timestamps are appended in order, so the first is the oldest.
		retry := s.window - now.Sub(kept[0])
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	s.clients[key] = append(kept, now)
	return Decision{Allowed: true, Remaining: s.maxRequests - len(kept) - 1}, nil
}

// ClientCount returns the number of tracked clients.
func (s *MemoryStore) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// sweep drops clients with no activity inside twice the window. Runs at
// most once per sweep interval. Callers must hold the mutex.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}

	cutoff := now.Add(-2 * s.window)
	for key, stamps := range s.clients {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(s.clients, key)
		} else {
			s.clients[key] = kept
		}
	}
	s.lastSweep = now
}
