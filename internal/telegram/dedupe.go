package telegram

import (
	"sync"
	"time"
)

// messageKey identifies one delivered message.
type messageKey struct {
	chatID    int64
	messageID int
}

// dedupeCache remembers recently seen keys for ttl so a redelivered update
// is handled once. Expired entries are pruned lazily on each check.
type dedupeCache[K comparable] struct {
	mu      sync.Mutex
	entries map[K]time.Time
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newDedupeCache[K comparable](ttl time.Duration, maxSize int) *dedupeCache[K] {
	return &dedupeCache[K]{
		entries: make(map[K]time.Time, 256),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// seen reports whether key was recorded within the TTL window and records it
// if not. A zero TTL disables deduplication.
func (d *dedupeCache[K]) seen(key K) bool {
	if d.ttl <= 0 {
		return false
	}
	now := d.now()
	cutoff := now.Add(-d.ttl)

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.entries[key]; ok && !ts.Before(cutoff) {
		return true
	}
	d.prune(cutoff)
	d.entries[key] = now
	return false
}

// prune must be called with d.mu held.
func (d *dedupeCache[K]) prune(cutoff time.Time) {
	for k, ts := range d.entries {
		if ts.Before(cutoff) {
			delete(d.entries, k)
		}
	}
	// Map order is random, which is good enough for eviction under pressure.
	if d.maxSize > 0 && len(d.entries) >= d.maxSize {
		excess := len(d.entries) - d.maxSize + 1
		for k := range d.entries {
			if excess <= 0 {
				break
			}
			delete(d.entries, k)
			excess--
		}
	}
}

func (d *dedupeCache[K]) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
