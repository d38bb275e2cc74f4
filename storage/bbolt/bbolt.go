// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/mharding/shopfront/storage"
)

// Store implements storage.Repository backed by a BBolt database. Each
// record type maps to one bucket.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(recordType, recordID string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return boltTx{tx}.Put(recordType, recordID, data)
	})
}

func (s *Store) Get(recordType, recordID string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		got, err := boltTx{tx}.Get(recordType, recordID)
		if err != nil {
			return err
		}
		data = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Delete(recordType, recordID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return boltTx{tx}.Delete(recordType, recordID)
	})
}

func (s *Store) List(recordType string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		got, err := boltTx{tx}.List(recordType)
		if err != nil {
			return err
		}
		ids = got
		return nil
	})
	return ids, err
}

func (s *Store) Update(fn func(tx storage.Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx})
	})
}

type boltTx struct {
	tx *bbolt.Tx
}

var _ storage.Tx = boltTx{}

func (t boltTx) Put(recordType, recordID string, data []byte) error {
	b, err := t.tx.CreateBucketIfNotExists([]byte(recordType))
	if err != nil {
		return err
	}
	return b.Put([]byte(recordID), data)
}

func (t boltTx) Get(recordType, recordID string) ([]byte, error) {
	b := t.tx.Bucket([]byte(recordType))
	if b == nil {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	data := b.Get([]byte(recordID))
	if data == nil {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	// The returned slice is only valid for the life of the transaction.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (t boltTx) Delete(recordType, recordID string) error {
	b := t.tx.Bucket([]byte(recordType))
	if b == nil || b.Get([]byte(recordID)) == nil {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return b.Delete([]byte(recordID))
}

func (t boltTx) List(recordType string) ([]string, error) {
	b := t.tx.Bucket([]byte(recordType))
	if b == nil {
		return nil, nil
	}
	var ids []string
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		ids = append(ids, string(k))
	}
	return ids, nil
}
