package app

import "sync"

// transferLocks is a lock table keyed by transfer id. All mutations of one
// transfer are serialized through its entry; handlers for different transfers
// run fully in parallel. Entries are tiny and transfers are retained
// indefinitely, so the table is never pruned.
type transferLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTransferLocks() *transferLocks {
	return &transferLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for the given transfer id and returns its unlock
// function.
func (l *transferLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
