// Package storage provides the persistence abstraction for shop records.
// Records are JSON documents keyed by (recordType, recordID); encryption
// of protected fields happens above this layer, so backends only ever see
// opaque bytes.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Tx provides record access within a single atomic batch. Writes made
// through a Tx become visible to subsequent reads in the same batch and
// commit (or roll back) together. This is the boundary that keeps audit
// rows on the same commit as the mutation that produced them.
type Tx interface {
	Put(recordType string, recordID string, data []byte) error
	Get(recordType string, recordID string) ([]byte, error)
	Delete(recordType string, recordID string) error
	List(recordType string) ([]string, error)
}

// Repository defines the interface for record storage.
type Repository interface {
	Put(recordType string, recordID string, data []byte) error
	Get(recordType string, recordID string) ([]byte, error)
	Delete(recordType string, recordID string) error
	// List returns record IDs of the given type in lexical order.
	List(recordType string) ([]string, error)
	// Update runs fn atomically; if fn returns an error nothing is
	// persisted.
	Update(fn func(tx Tx) error) error
}
