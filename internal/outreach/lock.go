package outreach

import "sync"

// contactLocks tracks contacts with an attempt in flight.
type contactLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newContactLocks() *contactLocks {
	return &contactLocks{active: make(map[string]struct{})}
}

func (l *contactLocks) tryLock(contactID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.active[contactID]; busy {
		return false
	}
	l.active[contactID] = struct{}{}
	return true
}

func (l *contactLocks) unlock(contactID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.active, contactID)
}
