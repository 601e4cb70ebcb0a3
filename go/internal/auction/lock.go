package auction

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes all mutations to a single session. Bid placement,
// timer-expiry resolution and ready/acknowledge transitions are
// read-modify-write races on the same record, so every transition runs
// under the session's mutex for the full load-mutate-commit cycle.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *sessionLocks) get(sessionID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[sessionID]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[sessionID] = m
	return m
}
