// Package memory provides an in-memory storage repository, primarily for
// tests and local development.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mharding/shopfront/storage"
)

// Store implements storage.Repository with plain maps guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns an empty in-memory Repository.
func NewRepository() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(recordType, recordID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(recordType, recordID, data)
	return nil
}

func (s *Store) Get(recordType, recordID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(recordType, recordID)
}

func (s *Store) Delete(recordType, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(recordType, recordID)
}

func (s *Store) List(recordType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(recordType), nil
}

// Update applies fn against a staged copy of the store; the copy replaces
// the live maps only if fn succeeds, so a failed batch leaves no partial
// writes behind.
func (s *Store) Update(fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &Store{data: make(map[string]map[string][]byte, len(s.data))}
	for rt, records := range s.data {
		cp := make(map[string][]byte, len(records))
		for id, data := range records {
			cp[id] = data
		}
		staged.data[rt] = cp
	}

	if err := fn(memTx{staged}); err != nil {
		return err
	}
	s.data = staged.data
	return nil
}

func (s *Store) put(recordType, recordID string, data []byte) {
	records, ok := s.data[recordType]
	if !ok {
		records = make(map[string][]byte)
		s.data[recordType] = records
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	records[recordID] = cp
}

func (s *Store) get(recordType, recordID string) ([]byte, error) {
	data, ok := s.data[recordType][recordID]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) delete(recordType, recordID string) error {
	if _, ok := s.data[recordType][recordID]; !ok {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	delete(s.data[recordType], recordID)
	return nil
}

func (s *Store) list(recordType string) []string {
	records := s.data[recordType]
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// memTx operates on the staged store; the parent Update call already
// holds the lock.
type memTx struct {
	staged *Store
}

var _ storage.Tx = memTx{}

func (t memTx) Put(recordType, recordID string, data []byte) error {
	t.staged.put(recordType, recordID, data)
	return nil
}

func (t memTx) Get(recordType, recordID string) ([]byte, error) {
	return t.staged.get(recordType, recordID)
}

func (t memTx) Delete(recordType, recordID string) error {
	return t.staged.delete(recordType, recordID)
}

func (t memTx) List(recordType string) ([]string, error) {
	return t.staged.list(recordType), nil
}
