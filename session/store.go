package session

import (
	"sync"
	"time"
)

// Store abstracts session persistence so sessions can live in memory
// (default), in the BBolt/Postgres repository, or in Redis.
type Store interface {
	// Get retrieves a session by token. Returns false if it does not
	// exist.
	Get(token string) (Session, bool)
	// Put creates or replaces the session for the given token.
	Put(token string, s Session)
	// Delete removes a session by token.
	Delete(token string)
}

// MemoryStore is a thread-safe in-memory Store. Sessions are lost on
// server restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Session)}
}

func (s *MemoryStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.data[token]
	return sess, ok
}

func (s *MemoryStore) Put(token string, sess Session) {
	s.mu.Lock()
	s.data[token] = sess
	s.mu.Unlock()
}

func (s *MemoryStore) Delete(token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}

// PurgeOlderThan removes sessions created before the cutoff. Callers may
// run it periodically to bound memory growth from abandoned sessions.
func (s *MemoryStore) PurgeOlderThan(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.data {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.data, token)
		}
	}
}
