package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/mharding/shopfront/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestBBoltStorage(t *testing.T) {
	s := newTestStore(t)

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put("USER", "u1", []byte(`{"id":"u1"}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		data, err := s.Get("USER", "u1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != `{"id":"u1"}` {
			t.Errorf("unexpected data: %s", data)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get("USER", "nope")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		s.Put("PRODUCT", "p2", []byte("b"))
		s.Put("PRODUCT", "p1", []byte("a"))
		ids, err := s.List("PRODUCT")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
			t.Errorf("expected [p1 p2], got %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s.Put("CART", "c1", []byte("x"))
		if err := s.Delete("CART", "c1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete("CART", "c1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateCommits", func(t *testing.T) {
		err := s.Update(func(tx storage.Tx) error {
			if err := tx.Put("ORDER", "o1", []byte("order")); err != nil {
				return err
			}
			return tx.Put("AUDIT", "a1", []byte("audit"))
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if _, err := s.Get("ORDER", "o1"); err != nil {
			t.Errorf("order not committed: %v", err)
		}
		if _, err := s.Get("AUDIT", "a1"); err != nil {
			t.Errorf("audit row not committed: %v", err)
		}
	})

	t.Run("UpdateRollsBack", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Update(func(tx storage.Tx) error {
			if err := tx.Put("ORDER", "o2", []byte("order")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := s.Get("ORDER", "o2"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected rollback, got %v", err)
		}
	})

	t.Run("UpdateReadsOwnWrites", func(t *testing.T) {
		err := s.Update(func(tx storage.Tx) error {
			if err := tx.Put("USER", "u9", []byte("v")); err != nil {
				return err
			}
			data, err := tx.Get("USER", "u9")
			if err != nil {
				return err
			}
			if string(data) != "v" {
				t.Errorf("staged write not visible: %s", data)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	})
}
