// Package memstore is an in-process state store for development and tests.
// Expired entries are dropped when read and swept every sweepEvery writes.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

const sweepEvery = 256

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store is a mutex-guarded map implementing statestore.Store.
type Store struct {
	mu   sync.RWMutex
	data   map[string]entry
	now    func() time.Time
	writes int
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]entry), now: time.Now}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(e) {
		s.mu.Lock()
		// A concurrent Set may have replaced the entry.
		if cur, ok := s.data[key]; ok && s.expired(cur) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweepLocked()
	}
	s.mu.Unlock()
	return nil
}

// Len reports how many entries are held, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys lists live keys starting with prefix in lexical order. Expired
// entries met on the way are removed.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k, e := range s.data {
		if s.expired(e) {
			delete(s.data, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) sweepLocked() {
	for k, e := range s.data {
		if s.expired(e) {
			delete(s.data, k)
		}
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
