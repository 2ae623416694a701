// Package concurrency serializes turn processing per session so overlapping
// inputs for the same conversation cannot interleave pipeline stages.
package concurrency

import "sync"

// SessionLocks hands out one mutex per session ID. Locks are created on
// first use and retained for the process lifetime.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the session's lock is held. An empty session ID is a
// no-op so anonymous one-shot turns never contend.
func (l *SessionLocks) Acquire(sessionID string) {
	if sessionID == "" {
		return
	}
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	l.mu.Unlock()
	lock.Lock()
}

func (l *SessionLocks) Release(sessionID string) {
	if sessionID == "" {
		return
	}
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	l.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}
