// Package connectivity tracks whether the remote store is currently usable.
package connectivity

import (
	"sync"
)

// Monitor holds the current online/offline state and notifies subscribers
// once per transition.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)

	// serializes delivery so subscribers see transitions in order
	notifyMu sync.Mutex
}

// New returns a Monitor that starts in the given online state.
func New(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report records what the underlying signal observed. Reporting the current
// state again is ignored; a change fires exactly one notification per
// subscriber. It reports whether a transition happened.
func (m *Monitor) Report(online bool) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := m.snapshotLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// Subscribe registers fn for future transitions. The returned function
// removes the subscription.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// snapshotLocked returns subscribers in registration order.
func (m *Monitor) snapshotLocked() []func(bool) {
	out := make([]func(bool), 0, len(m.subs))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
