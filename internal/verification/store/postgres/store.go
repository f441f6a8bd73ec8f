// Package postgres implements the LedgerStore contract on PostgreSQL. Rows are
// stored as jsonb documents under the same (table, pk, sk) addressing and
// reference index the DynamoDB adapter uses, so the two are interchangeable
// behind the contract.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attest/internal/verification/models"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ledger_records (
		table_name text NOT NULL,
		pk         text NOT NULL,
		sk         text NOT NULL,
		reference  text NOT NULL DEFAULT '',
		doc        jsonb NOT NULL,
		PRIMARY KEY (table_name, pk, sk)
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_records_reference_idx
		ON ledger_records (table_name, reference)`,
}

// Store implements ports.LedgerStore.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the ledger table and reference index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, table string, rec models.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_records (table_name, pk, sk, reference, doc)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (table_name, pk, sk)
		 DO UPDATE SET reference = EXCLUDED.reference, doc = EXCLUDED.doc`,
		table, rec.PartitionKey, rec.SortKey, rec.Reference, doc,
	)
	if err != nil {
		return fmt.Errorf("put ledger record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, partitionKey, sortKey string) (*models.Record, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM ledger_records WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		table, partitionKey, sortKey,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}

	var rec models.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal ledger record: %w", err)
	}
	return &rec, nil
}

func (s *Store) QueryByPartition(ctx context.Context, table, partitionKey string, limit int32) ([]models.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM ledger_records WHERE table_name = $1 AND pk = $2 LIMIT $3`,
		table, partitionKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger partition: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) QueryByIndex(ctx context.Context, table, _ string, reference string, limit int32) ([]models.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM ledger_records WHERE table_name = $1 AND reference = $2 LIMIT $3`,
		table, reference, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger reference index: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]models.Record, error) {
	var recs []models.Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		var rec models.Record
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal ledger record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return recs, nil
}
