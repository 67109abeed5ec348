package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the number of tracked keys above which stale windows are dropped.
const sweepThreshold = 4096

type memoryWindow struct {
	second int64
	count  int
}

// MemoryLimiter implements a fixed one-second window limiter in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*memoryWindow)}
}

// Allow counts one request for key in the second containing now.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > sweepThreshold {
		l.sweep(sec)
	}
	w := l.windows[key]
	if w == nil || w.second != sec {
		w = &memoryWindow{second: sec}
		l.windows[key] = w
	}
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, Reset: reset}, nil
}

// sweep drops windows older than the current second. Caller holds l.mu.
func (l *MemoryLimiter) sweep(sec int64) {
	for key, w := range l.windows {
		if w.second < sec {
			delete(l.windows, key)
		}
	}
}
