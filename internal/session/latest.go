// Package session guards per-session state against out-of-order responses.
package session

import "sync"

// Token identifies one fetch started with Latest.Begin.
type Token uint64

// Latest holds the value produced by the most recently started fetch.
// Responses of earlier fetches are discarded when they arrive late.
type Latest[T any] struct {
	mu      sync.Mutex
	issued  Token
	applied Token
	value   T
	key     string
}

// Begin starts a fetch for key and returns its token. Every call
// invalidates the tokens returned before.
func (l *Latest[T]) Begin(key string) Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.issued++
	l.key = key
	return l.issued
}

// Deliver applies v if token is still the latest one. It reports whether
// the value was applied.
func (l *Latest[T]) Deliver(token Token, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if token != l.issued || token == l.applied {
		return false
	}

	l.value = v
	l.applied = token
	return true
}

// Current returns the key selected last and the value applied for it. ok is
// false while the latest fetch has not been delivered yet.
func (l *Latest[T]) Current() (key string, v T, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.issued == 0 || l.applied != l.issued {
		var zero T
		return l.key, zero, false
	}
	return l.key, l.value, true
}

// Registry keeps one Latest per session id.
type Registry[T any] struct {
	mu       sync.Mutex
	sessions map[string]*Latest[T]
}

// NewRegistry creates an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{sessions: make(map[string]*Latest[T])}
}

// Get returns the Latest of a session, creating it on first use.
func (r *Registry[T]) Get(id string) *Latest[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.sessions[id]
	if !ok {
		l = &Latest[T]{}
		r.sessions[id] = l
	}
	return l
}
