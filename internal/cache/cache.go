package cache

import "time"

// Cache defines a generic cache interface
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	// Purge drops every entry.
	Purge()
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans registered caches.
type Manager struct {
	caches      []Cleaner
	onClean     func(removed int)
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a new cache manager. onClean, if set, receives the
// number of entries removed by each sweep that removed any.
func NewManager(onClean func(removed int)) *Manager {
	return &Manager{
		onClean:     onClean,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

// Sweep cleans every registered cache once and returns the removed count.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 && m.onClean != nil {
		m.onClean(total)
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine started by StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
