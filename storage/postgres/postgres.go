// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The records table uses a composite primary key (record_type, record_id)
// mirroring the key space of the BBolt and in-memory backends; document
// bytes live in a single BYTEA column. Batches map to native database
// transactions, which is what gives audit rows the same commit boundary
// as the writes they describe.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mharding/shopfront/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string,
// ensures the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(recordType, recordID string, data []byte) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO shop_records (record_type, record_id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (record_type, record_id) DO UPDATE SET data = $3`,
		recordType, recordID, data)
	return err
}

func (s *Store) Get(recordType, recordID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT data FROM shop_records WHERE record_type = $1 AND record_id = $2`,
		recordType, recordID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Delete(recordType, recordID string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM shop_records WHERE record_type = $1 AND record_id = $2`,
		recordType, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) List(recordType string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT record_id FROM shop_records WHERE record_type = $1 ORDER BY record_id`,
		recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Update(fn func(tx storage.Tx) error) error {
	ctx := context.Background()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgTx{ctx: ctx, tx: tx})
	})
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

var _ storage.Tx = pgTx{}

func (t pgTx) Put(recordType, recordID string, data []byte) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO shop_records (record_type, record_id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (record_type, record_id) DO UPDATE SET data = $3`,
		recordType, recordID, data)
	return err
}

func (t pgTx) Get(recordType, recordID string) ([]byte, error) {
	var data []byte
	err := t.tx.QueryRow(t.ctx,
		`SELECT data FROM shop_records WHERE record_type = $1 AND record_id = $2`,
		recordType, recordID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t pgTx) Delete(recordType, recordID string) error {
	tag, err := t.tx.Exec(t.ctx,
		`DELETE FROM shop_records WHERE record_type = $1 AND record_id = $2`,
		recordType, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

func (t pgTx) List(recordType string) ([]string, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT record_id FROM shop_records WHERE record_type = $1 ORDER BY record_id`,
		recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
