// Package keylock hands out one mutex per key. Entries are reference counted
// and removed when the last holder unlocks, so the map only grows with the
// number of keys in use at the same time.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map is a set of mutexes addressed by K. The zero value is ready to use.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

// Lock blocks until the mutex for key is held and returns its release func.
func (m *Map[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()

	if m.locks == nil {
		m.locks = make(map[K]*entry)
	}

	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}

	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once

	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--

			if e.refs == 0 {
				delete(m.locks, key)
			}

			m.mu.Unlock()
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}
