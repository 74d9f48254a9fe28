package auth

import "sync"

// keyedLock serializes refresh-token mutations per account. Two concurrent
// refreshes of the same token must not both rotate it; holding the account
// lock around the read-modify-write guarantees a single winner.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for the key and returns its unlock function.
func (l *keyedLock) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
