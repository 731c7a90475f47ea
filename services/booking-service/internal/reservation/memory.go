package reservation

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a single-process Locker used when Redis is not configured.
type MemoryLocker struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seq  uint64
	held map[string]memoryEntry
}

type memoryEntry struct {
	owner   uint64
	expires time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryLocker{ttl: ttl, now: time.Now, held: map[string]memoryEntry{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, sellerID string, slotStart time.Time) (func(context.Context) error, error) {
	k := key("", sellerID, slotStart)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for other, e := range l.held {
		if !now.Before(e.expires) {
			delete(l.held, other)
		}
	}
	if _, ok := l.held[k]; ok {
		return nil, ErrHeld
	}

	l.seq++
	owner := l.seq

	l.held[k] = memoryEntry{owner: owner, expires: now.Add(l.ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[k]; ok && e.owner == owner {
			delete(l.held, k)
		}
		return nil
	}, nil
}
