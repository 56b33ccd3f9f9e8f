package service

import "sync"

// accountLocks hands out one mutex per account id, serializing the few
// read-then-write sequences (endSession's validate-then-replace) that the
// persistence layer cannot express as a single targeted update.
//
// Entries are never evicted; the per-account footprint is one mutex.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
