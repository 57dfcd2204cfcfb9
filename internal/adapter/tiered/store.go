// Package tiered layers an in-process read cache over an authoritative
// state store.
package tiered

import (
	"context"
	"strings"
	"time"

	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

// Store combines an L1 (in-process) cache and an L2 (authoritative) store.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit). Writes go to L2
// first so L1 never holds a value L2 rejected.
type Store struct {
	l1       statestore.Store
	l2       statestore.Store
	l1Expire time.Duration
	bypass   []string
}

// New creates a tiered store. l1Expire bounds how long any entry lives in
// L1, which also bounds staleness when several processes share L2.
func New(l1, l2 statestore.Store, l1Expire time.Duration) *Store {
	return &Store{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Bypass keeps keys starting with any of prefixes out of L1. Records that
// are read-modify-written from several processes must always come from L2.
func (s *Store) Bypass(prefixes ...string) *Store {
	s.bypass = append(s.bypass, prefixes...)
	return s
}

func (s *Store) cached(key string) bool {
	for _, p := range s.bypass {
		if strings.HasPrefix(key, p) {
			return false
		}
	}
	return true
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (s *Store) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	if !s.cached(key) {
		return s.l2.Get(ctx, key)
	}
	val, found, err := s.l1.Get(ctx, key)
	if err == nil && found {
		return val, true, nil
	}

	val, found, err = s.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		_ = s.l1.Set(ctx, key, val, s.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes to L2, then to L1 with the L1 lifetime cap applied.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.cached(key) {
		return s.l2.Set(ctx, key, value, ttl)
	}
	if err := s.l2.Set(ctx, key, value, ttl); err != nil {
		_ = s.l1.Delete(ctx, key)
		return err
	}
	return s.l1.Set(ctx, key, value, s.l1TTL(ttl))
}

// Delete removes from both L1 and L2.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.l1.Delete(ctx, key); err != nil {
		return err
	}
	return s.l2.Delete(ctx, key)
}

// Keys delegates to L2 when it can enumerate keys.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if l, ok := s.l2.(statestore.Lister); ok {
		return l.Keys(ctx, prefix)
	}
	return nil, nil
}

func (s *Store) l1TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > s.l1Expire {
		return s.l1Expire
	}
	return ttl
}
