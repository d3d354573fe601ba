package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"eri/internal/domain"
)

const DefaultMaxKeys = 10000

var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// MemoryLimiter is a fixed-window counter held in process memory. Expired
// windows are collected lazily once the key table is full.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count int
	end   time.Time
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	return &MemoryLimiter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, size time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.end) {
		if !ok && len(m.windows) >= m.maxKeys {
			m.collect(now)
			if len(m.windows) >= m.maxKeys {
				return domain.RateLimitDecision{}, ErrCapacityExceeded
			}
		}
		w = &window{end: now.Add(size)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return domain.RateLimitDecision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.end}, nil
	}
	w.count++
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   w.end,
	}, nil
}

// Len reports the number of tracked keys, expired or not.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryLimiter) collect(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.end) {
			delete(m.windows, key)
		}
	}
}
