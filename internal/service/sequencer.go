package service

import "sync"

// ---------------------------------------------------------------------------
// Sequencer: per-conversation single-writer lock
// ---------------------------------------------------------------------------

// Sequencer serializes work per key. Calls for the same key run one at a
// time in lock-acquisition order; different keys run in parallel. Idle
// keys hold no memory.
type Sequencer struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{locks: make(map[string]*keyLock)}
}

// Do runs fn while holding the lock of key.
func (s *Sequencer) Do(key string, fn func() error) error {
	l := s.acquire(key)
	defer s.release(key, l)
	return fn()
}

func (s *Sequencer) acquire(key string) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Sequencer) release(key string, l *keyLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Len returns the number of keys currently locked or waited on.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
