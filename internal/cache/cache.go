// Package cache memoizes dashboard aggregates.
//
// Manager is the fingerprint-keyed cache in front of the aggregation pass and
// owns the persisted cache entry. LRUCache and Sweeper keep short-lived,
// per-scope results in memory for the HTTP layer.
package cache

import (
	"sync"
	"time"

	"sahayak/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	GetOrCompute(key string, compute func() T) T
	Delete(key string)
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Sweeper periodically evicts expired entries from registered caches.
type Sweeper struct {
	mu      sync.Mutex
	caches  []Cleaner
	logger  *log.Logger
	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewSweeper creates a sweeper; a nil logger discards sweep logs.
func NewSweeper(logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Discard()
	}
	return &Sweeper{
		logger: logger.WithComponent(log.ComponentCache),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache to the sweep set.
func (s *Sweeper) Register(c Cleaner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches = append(s.caches, c)
}

// Start begins sweeping every interval. A sweeper runs at most once; later
// calls are no-ops.
func (s *Sweeper) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.run(interval)
}

// Sweep evicts expired entries from every registered cache once and returns
// the number of evicted entries.
func (s *Sweeper) Sweep() int {
	s.mu.Lock()
	caches := append([]Cleaner(nil), s.caches...)
	s.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (s *Sweeper) run(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Evicted expired cache entries", "count", n)
			}
		case <-s.stop:
			return
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.stopped = true
	s.mu.Unlock()

	if !started || stopped {
		return
	}
	close(s.stop)
	<-s.done
}
