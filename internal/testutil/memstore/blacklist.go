package memstore

import (
	"context"
	"sync"
	"time"
)

// Blacklist mimics Redis keys with TTL on the shared clock.
type Blacklist struct {
	mu      sync.Mutex
	clock   *Clock
	entries map[string]time.Time
	// Fail makes every call return this error when set.
	Fail error
}

// NewBlacklist builds an empty blacklist.
func NewBlacklist(clock *Clock) *Blacklist {
	return &Blacklist{clock: clock, entries: map[string]time.Time{}}
}

// Put stores the fingerprint until ttl elapses.
func (b *Blacklist) Put(_ context.Context, fingerprint string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	if ttl <= 0 {
		return nil
	}
	b.entries[fingerprint] = b.clock.Now().Add(ttl)
	return nil
}

// Exists reports whether the fingerprint is present and unexpired.
func (b *Blacklist) Exists(_ context.Context, fingerprint string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail != nil {
		return false, b.Fail
	}
	expiry, ok := b.entries[fingerprint]
	return ok && expiry.After(b.clock.Now()), nil
}

// Len returns the number of unexpired entries.
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	now := b.clock.Now()
	for _, expiry := range b.entries {
		if expiry.After(now) {
			n++
		}
	}
	return n
}
