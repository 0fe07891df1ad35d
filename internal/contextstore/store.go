// Package contextstore provides the process-wide object cache shared by the
// transports, the session manager, and the auth resolver. It is an in-process
// store for live values (session records, transport bindings, template
// context); values are never serialized, so handles with goroutines or
// channels are safe to keep in it.
package contextstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the backing cache. Session counts are small in
// practice; the bound exists so an abusive client cannot grow the table
// without limit.
const DefaultMaxEntries = 4096

type entry struct {
	value     any
	expiresAt *time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.expiresAt != nil && now.After(*e.expiresAt)
}

// Store is a TTL-capable key/value store for live objects. All methods are
// safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *entry]

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// New creates a Store bounded to maxEntries (DefaultMaxEntries when <= 0)
// and starts a background sweep of expired entries.
func New(maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := lru.New[string, *entry](maxEntries)
	if err != nil {
		return nil, err
	}
	s := &Store{cache: cache, janitorStop: make(chan struct{})}
	go s.sweepExpired(time.Minute)
	return s, nil
}

// Get returns the live value for key, or (nil, false) if the key is absent
// or its TTL elapsed.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		s.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with no expiry, replacing any prior value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.cache.Add(key, &entry{value: value})
	s.mu.Unlock()
}

// SetTTL stores value under key, expiring after ttl. A non-positive ttl
// behaves like Set.
func (s *Store) SetTTL(key string, value any, ttl time.Duration) {
	e := &entry{value: value}
	if ttl > 0 {
		t := time.Now().Add(ttl)
		e.expiresAt = &t
	}
	s.mu.Lock()
	s.cache.Add(key, e)
	s.mu.Unlock()
}

// Expire resets the TTL of an existing key. It reports whether the key was
// present (and unexpired).
func (s *Store) Expire(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache.Peek(key)
	if !ok || e.expired(time.Now()) {
		return false
	}
	if ttl <= 0 {
		e.expiresAt = nil
		return true
	}
	t := time.Now().Add(ttl)
	e.expiresAt = &t
	return true
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	s.cache.Remove(key)
	s.mu.Unlock()
}

// Len reports the number of stored entries, including any not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Close stops the background sweep and drops all entries.
func (s *Store) Close() {
	s.janitorOnce.Do(func() { close(s.janitorStop) })
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
}

func (s *Store) sweepExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
		}
		now := time.Now()
		s.mu.Lock()
		for _, key := range s.cache.Keys() {
			if e, ok := s.cache.Peek(key); ok && e.expired(now) {
				s.cache.Remove(key)
			}
		}
		s.mu.Unlock()
	}
}
