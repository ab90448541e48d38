package delay

import (
	"log"
	"sync"
	"time"
)

// Delay is one pending deferred action
type Delay[P any] struct {
	deadline time.Time
	payload  P
	timer    *time.Timer
}

// Deadline returns when the delay fires
func (d *Delay[P]) Deadline() time.Time { return d.deadline }

// Payload returns the value handed to the fire callback
func (d *Delay[P]) Payload() P { return d.payload }

// Manager holds at most one pending delay per key.
// Callbacks run on their own goroutine and never block the caller.
type Manager[K comparable, P any] struct {
	name    string
	mu      sync.Mutex
	pending map[K]*Delay[P]
}

// NewManager creates an empty manager; name is used as the log prefix
func NewManager[K comparable, P any](name string) *Manager[K, P] {
	return &Manager[K, P]{
		name:    name,
		pending: make(map[K]*Delay[P]),
	}
}

// Start schedules fire(payload) after d unless a delay is already pending for
// key, in which case the existing one is kept untouched and false is returned.
func (m *Manager[K, P]) Start(key K, d time.Duration, payload P, fire func(P)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pending[key]; exists {
		return false
	}

	entry := &Delay[P]{deadline: time.Now().Add(d), payload: payload}
	entry.timer = time.AfterFunc(d, func() {
		m.mu.Lock()
		if m.pending[key] != entry {
			// cancelled, or replaced after a cancel
			m.mu.Unlock()
			return
		}
		delete(m.pending, key)
		m.mu.Unlock()

		fire(entry.payload)
	})
	m.pending[key] = entry

	log.Printf("%s: Delay started for %v (fires at %s)", m.name, key, entry.deadline.Format(time.RFC3339))
	return true
}

// Cancel stops the pending delay for key. A callback that already started
// is not interrupted.
func (m *Manager[K, P]) Cancel(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.pending[key]
	if !exists {
		return false
	}
	entry.timer.Stop()
	delete(m.pending, key)

	log.Printf("%s: Delay cancelled for %v", m.name, key)
	return true
}

// CancelAll stops every pending delay and returns how many were cancelled
func (m *Manager[K, P]) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.pending)
	for key, entry := range m.pending {
		entry.timer.Stop()
		delete(m.pending, key)
	}
	if n > 0 {
		log.Printf("%s: Cancelled %d pending delays", m.name, n)
	}
	return n
}

// Pending returns the pending delay for key, if any
func (m *Manager[K, P]) Pending(key K) (*Delay[P], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[key]
	return entry, ok
}

// Len returns the number of pending delays
func (m *Manager[K, P]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
