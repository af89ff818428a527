package session

import (
	"errors"
	"sync"
	"time"

	"github.com/BatmanBruc/any2any-bot/types"
)

var ErrConflict = errors.New("session changed concurrently")

// Store maps identities to sessions. Get hands out copies; writes go through
// CompareAndSwap so a stale copy can never overwrite a newer session.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	seq      uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]Session),
	}
}

func (s *Store) Get(key int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.sessions[key]
	if !ok {
		return Session{}, false
	}
	return cur.clone(), true
}

func (s *Store) Has(key int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[key]
	return ok
}

// Put stores sess for its owner unconditionally and returns the session it
// replaced, if any. The caller becomes the owner of the replaced files.
func (s *Store) Put(sess Session) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sess.Owner.Key()
	prev, replaced := s.sessions[key]
	s.seq++
	sess.version = s.seq
	s.sessions[key] = sess.clone()
	return prev, replaced
}

// CompareAndSwap replaces old with next only if old is still current.
func (s *Store) CompareAndSwap(old, next Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := old.Owner.Key()
	cur, ok := s.sessions[key]
	if !ok || cur.version != old.version || next.Owner.Key() != key {
		return Session{}, ErrConflict
	}
	s.seq++
	next.version = s.seq
	s.sessions[key] = next.clone()
	return next.clone(), nil
}

// CompareAndDelete removes sess only if it is still current.
func (s *Store) CompareAndDelete(sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sess.Owner.Key()
	cur, ok := s.sessions[key]
	if !ok || cur.version != sess.version {
		return false
	}
	delete(s.sessions, key)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IdleSince lists owners whose session was last touched before cutoff.
func (s *Store) IdleSince(cutoff time.Time) []types.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var idle []types.Identity
	for _, sess := range s.sessions {
		if sess.TouchedAt.Before(cutoff) {
			idle = append(idle, sess.Owner)
		}
	}
	return idle
}

// Drain removes every session and returns them. Used on shutdown.
func (s *Store) Drain() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for key, sess := range s.sessions {
		out = append(out, sess)
		delete(s.sessions, key)
	}
	return out
}
