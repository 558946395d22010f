package bucket

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"findthem/internal/ratelimit/models"
)

// pruneEvery bounds how often idle buckets are swept.
const pruneEvery = 1024

// InMemoryStore keeps one token bucket per key. A bucket holds limit tokens
// and refills at limit per window. Not shared between instances; use
// RedisStore for that.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*visitor
	now     func() time.Time
	calls   int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	window   time.Duration
}

type MemoryOption func(*InMemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		buckets: make(map[string]*visitor),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow takes one token from the key's bucket when available.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%pruneEvery == 0 {
		s.prune(now)
	}

	v := s.bucket(key, limit, window)
	v.lastSeen = now
	every := window / time.Duration(limit)

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: int(math.Ceil(delay.Seconds())),
		}, nil
	}

	tokens := v.limiter.TokensAt(now)
	missing := float64(limit) - tokens
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: int(math.Floor(tokens)),
		ResetAt:   now.Add(time.Duration(missing * float64(every))),
	}, nil
}

// Reset drops the bucket for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Len returns the number of tracked buckets.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// bucket must be called with s.mu held. A changed limit or window replaces
// the bucket.
func (s *InMemoryStore) bucket(key string, limit int, window time.Duration) *visitor {
	every := rate.Every(window / time.Duration(limit))
	if v := s.buckets[key]; v != nil && v.limiter.Burst() == limit && v.window == window {
		return v
	}
	v := &visitor{limiter: rate.NewLimiter(every, limit), window: window}
	s.buckets[key] = v
	return v
}

// prune removes buckets idle for longer than their window; they would be
// full again anyway. Must be called with s.mu held.
func (s *InMemoryStore) prune(now time.Time) {
	for key, v := range s.buckets {
		if now.Sub(v.lastSeen) > v.window {
			delete(s.buckets, key)
		}
	}
}
