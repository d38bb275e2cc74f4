package memory

import (
	"errors"
	"testing"

	"github.com/mharding/shopfront/storage"
)

func TestMemoryStorage(t *testing.T) {
	s := NewRepository()

	t.Run("PutGetDelete", func(t *testing.T) {
		if err := s.Put("USER", "u1", []byte("data")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		data, err := s.Get("USER", "u1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "data" {
			t.Errorf("unexpected data: %s", data)
		}
		if err := s.Delete("USER", "u1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get("USER", "u1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s.Put("USER", "u2", []byte("abc"))
		data, _ := s.Get("USER", "u2")
		data[0] = 'X'
		again, _ := s.Get("USER", "u2")
		if string(again) != "abc" {
			t.Errorf("stored data was mutated: %s", again)
		}
	})

	t.Run("ListSorted", func(t *testing.T) {
		s.Put("PRODUCT", "b", nil)
		s.Put("PRODUCT", "a", nil)
		ids, _ := s.List("PRODUCT")
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("expected [a b], got %v", ids)
		}
	})

	t.Run("UpdateAtomic", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Update(func(tx storage.Tx) error {
			tx.Put("ORDER", "o1", []byte("x"))
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := s.Get("ORDER", "o1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("failed batch leaked writes: %v", err)
		}

		err = s.Update(func(tx storage.Tx) error {
			return tx.Put("ORDER", "o2", []byte("y"))
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if _, err := s.Get("ORDER", "o2"); err != nil {
			t.Errorf("committed batch missing: %v", err)
		}
	})
}
