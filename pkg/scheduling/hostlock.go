package scheduling

import "sync"

// HostLock is the per-host serialization point for booking writes: the
// conflict-check-then-insert sequence runs under the host's mutex so that
// at most one of any set of concurrent overlapping requests can commit.
// Locks are created lazily and kept for the process lifetime; the map is
// bounded by the number of distinct hosts.
type HostLock struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewHostLock() *HostLock {
	return &HostLock{locks: make(map[int]*sync.Mutex)}
}

// Lock acquires the mutex for hostID and returns the matching unlock.
func (l *HostLock) Lock(hostID int) func() {
	l.mu.Lock()
	m, ok := l.locks[hostID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[hostID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
