// Package guard serializes mutating commands per domain and gates
// destructive actions behind a timed two-press confirmation.
package guard

import "sync"

// Domain names a group of mutating commands that must not overlap.
type Domain string

const (
	DomainDocker Domain = "docker"
	DomainTools  Domain = "tools"
	DomainDeploy Domain = "deploy"
)

// ActionLock is a per-domain mutual exclusion flag. It enforces logical
// exclusion for command dispatch, not memory safety: every mutating path
// must TryAcquire before dispatch and Release on every exit path.
type ActionLock struct {
	mu   sync.Mutex
	held map[Domain]string
}

// NewActionLock creates an ActionLock with no domains held.
func NewActionLock() *ActionLock {
	return &ActionLock{held: make(map[Domain]string)}
}

// TryAcquire attempts to take the lock for domain, recording the action
// kind for UI display. Returns false with no state change if already held.
func (l *ActionLock) TryAcquire(domain Domain, kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[domain]; ok {
		return false
	}
	l.held[domain] = kind
	return true
}

// Release frees the lock for domain. Releasing an unheld domain is a no-op
// so defer-based release is always safe.
func (l *ActionLock) Release(domain Domain) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, domain)
}

// Pending returns the action kind currently holding the domain, if any.
// UI affordances for the domain disable while this reports true.
func (l *ActionLock) Pending(domain Domain) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kind, ok := l.held[domain]
	return kind, ok
}
