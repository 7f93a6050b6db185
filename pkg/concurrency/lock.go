// Package concurrency provides keyed locking.
package concurrency

import (
	"sync"
)

// MutexManager hands out one mutex per key. A key's mutex is dropped once no
// goroutine holds or waits for it, so the map stays bounded by the number of
// keys in use.
type MutexManager struct {
	mutexes map[string]*refMutex
	mapMu   sync.Mutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func NewMutexManager() *MutexManager {
	return &MutexManager{
		mutexes: make(map[string]*refMutex),
	}
}

// Lock blocks until the mutex for key is held.
func (m *MutexManager) Lock(key string) {
	m.mapMu.Lock()
	mu, exists := m.mutexes[key]
	if !exists {
		mu = &refMutex{}
		m.mutexes[key] = mu
	}
	mu.refs++
	m.mapMu.Unlock()

	mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not locked is a no-op.
func (m *MutexManager) Unlock(key string) {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()

	mu, exists := m.mutexes[key]
	if !exists {
		return
	}
	mu.refs--
	if mu.refs == 0 {
		delete(m.mutexes, key)
	}
	mu.Unlock()
}

// Do runs fn while holding the lock for key.
func (m *MutexManager) Do(key string, fn func()) {
	m.Lock(key)
	defer m.Unlock(key)
	fn()
}

// Len returns the number of keys currently locked or waited on.
func (m *MutexManager) Len() int {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	return len(m.mutexes)
}
