// Package ratelimit admits inbound connection events through a sliding
// window. State is strictly instance-local: a visitor reconnecting to a
// different process gets a fresh window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks recent event timestamps per connection id. Entries are
// created on first use and must be removed by the disconnect handler;
// nothing here evicts them.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time

	now func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether one more event from connID fits in the window. When
// it does, the event is recorded; when it does not, nothing is recorded and
// the caller rejects only the triggering event, not the connection.
func (l *Limiter) Allow(connID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	timestamps := l.entries[connID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= l.limit {
		l.entries[connID] = valid
		return false
	}

	l.entries[connID] = append(valid, now)
	return true
}

// Remove drops the window for a disconnected connection.
func (l *Limiter) Remove(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, connID)
}

// Tracked returns the number of connections with live windows.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
