package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker serializes per-key execution inside a single process using a
// concurrent map of refcounted mutexes. Entries are removed once no goroutine
// holds or waits on a key, so the map only tracks active instances.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	waiters int
}

// NewLocalLocker creates a process-local instance locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

func (l *LocalLocker) Synchronized(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	entry := l.acquireEntry(key)
	entry.mu.Lock()

	defer func() {
		entry.mu.Unlock()
		l.releaseEntry(key, entry)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx)
}

func (l *LocalLocker) acquireEntry(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}

	entry.waiters++

	return entry
}

func (l *LocalLocker) releaseEntry(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.waiters--
	if entry.waiters == 0 {
		delete(l.entries, key)
	}
}
