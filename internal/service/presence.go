package service

import (
	"sort"
	"sync"
)

// PresenceRegistry reference-counts open connections per user. The transition
// callbacks run while the registry lock is held, so the online/offline events
// of one user are emitted in the order the transitions happened. Callbacks
// must not call back into the registry.
type PresenceRegistry interface {
	// Connect registers one connection for userID and returns a snapshot of
	// the online set taken after the increment. onOnline runs only on the
	// 0 -> 1 transition.
	Connect(userID string, onOnline func()) []string
	// Disconnect releases one connection. onOffline runs only on the 1 -> 0
	// transition; a release with no registered connection is a no-op.
	Disconnect(userID string, onOffline func())
	IsOnline(userID string) bool
	Count(userID string) int
	Online() []string
}

type presenceRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresenceRegistry() PresenceRegistry {
	return &presenceRegistry{counts: make(map[string]int)}
}

func (p *presenceRegistry) Connect(userID string, onOnline func()) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	if p.counts[userID] == 1 && onOnline != nil {
		onOnline()
	}
	return p.snapshotLocked()
}

func (p *presenceRegistry) Disconnect(userID string, onOffline func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.counts[userID]
	if !ok || n <= 0 {
		return
	}
	if n == 1 {
		delete(p.counts, userID)
		if onOffline != nil {
			onOffline()
		}
		return
	}
	p.counts[userID] = n - 1
}

func (p *presenceRegistry) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0
}

func (p *presenceRegistry) Count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}

func (p *presenceRegistry) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *presenceRegistry) snapshotLocked() []string {
	users := make([]string, 0, len(p.counts))
	for id := range p.counts {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
