package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eugenenazirov/lithium/internal/config"
)

// Storage provides read access to the current configuration snapshot and
// notification of the ones that follow.
type Storage interface {
	Get(key string, def any) any
	Sub(key string) config.Section
	Snapshot() config.Snapshot
	Subscribe(id string, fn Subscriber)
}

// Subscriber is invoked with each snapshot published by Replace.
type Subscriber func(snap config.Snapshot)

// Store keeps the current snapshot behind an atomic pointer.
// Construct it with New; the zero value is not usable.
type Store struct {
	current atomic.Pointer[config.Snapshot]

	// writeMu serialises Replace so versions are assigned in publish order.
	// Readers never take it.
	writeMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]Subscriber
}

// New creates a store whose current snapshot is initial, published as version 0.
func New(initial config.Snapshot) *Store {
	s := &Store{subscribers: make(map[string]Subscriber)}
	snap := initial.WithVersion(0)
	s.current.Store(&snap)
	return s
}

// Get returns the top-level value stored under key in the current snapshot, or def.
// Maps and slices are returned as copies.
func (s *Store) Get(key string, def any) any {
	return s.Snapshot().Get(key, def)
}

// Sub returns the nested mapping under key in the current snapshot.
func (s *Store) Sub(key string) config.Section {
	return s.Snapshot().Sub(key)
}

func (s *Store) GetString(key, def string) string {
	return s.Snapshot().GetString(key, def)
}

func (s *Store) GetBool(key string, def bool) bool {
	return s.Snapshot().GetBool(key, def)
}

func (s *Store) GetInt(key string, def int) int {
	return s.Snapshot().GetInt(key, def)
}

func (s *Store) GetFloat(key string, def float64) float64 {
	return s.Snapshot().GetFloat(key, def)
}

func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	return s.Snapshot().GetDuration(key, def)
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() config.Snapshot {
	return *s.current.Load()
}

// Version returns the version of the current snapshot.
func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// Replace publishes next as the current snapshot with the next version number and
// then notifies subscribers. It returns the published snapshot.
func (s *Store) Replace(next config.Snapshot) config.Snapshot {
	s.writeMu.Lock()
	published := next.WithVersion(s.current.Load().Version + 1)
	s.current.Store(&published)
	s.writeMu.Unlock()

	s.notify(published)
	return published
}

// Subscribe registers fn under id, replacing any subscriber with the same id.
// Subscribers run on the goroutine that called Replace and must not block.
func (s *Store) Subscribe(id string, fn Subscriber) {
	s.subMu.Lock()
	s.subscribers[id] = fn
	s.subMu.Unlock()
}

// Unsubscribe removes the subscriber registered under id, if any.
func (s *Store) Unsubscribe(id string) {
	s.subMu.Lock()
	delete(s.subscribers, id)
	s.subMu.Unlock()
}

func (s *Store) notify(snap config.Snapshot) {
	s.subMu.RLock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

var _ Storage = (*Store)(nil)
