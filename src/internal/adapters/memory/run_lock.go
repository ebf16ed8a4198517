package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryRunLocker is a single-process stand-in for the postgres lock
// manager, used by tests.
type InMemoryRunLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

func NewRunLocker() *InMemoryRunLocker {
	return &InMemoryRunLocker{
		locks: make(map[string]time.Time),
	}
}

func (l *InMemoryRunLocker) TryAcquireLock(ctx context.Context, key string, ttlSeconds int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, held := l.locks[key]; held && expiry.After(now) {
		return false, nil
	}
	l.locks[key] = now.Add(time.Duration(ttlSeconds) * time.Second)
	return true, nil
}

func (l *InMemoryRunLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	return nil
}
