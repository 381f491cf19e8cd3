package syncer

import "sync"

// keyedLocks hands out one mutex per identifier and forgets it again once the
// last holder or waiter releases it, so a long-lived process does not keep a
// mutex for every identifier it ever synced.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *keyedLocks) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the mutex for key, dropping the entry when no other
// goroutine holds or awaits it. Unlock of a key that was never locked panics.
func (k *keyedLocks) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("syncer: unlock of unheld keyed lock " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
	e.mu.Unlock()
}

// size reports how many identifiers currently hold an entry.
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
