// Package memory provides the in-memory LedgerStore used by unit tests and
// local development. Map iteration keeps query results deliberately unordered,
// matching the adapter contract.
package memory

import (
	"context"
	"sync"

	"attest/internal/verification/models"
)

type tableKey struct {
	partitionKey string
	sortKey      string
}

// Store implements ports.LedgerStore over process-local maps.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[tableKey]models.Record
}

func New() *Store {
	return &Store{tables: make(map[string]map[tableKey]models.Record)}
}

func (s *Store) Put(_ context.Context, table string, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	if rows == nil {
		rows = make(map[tableKey]models.Record)
		s.tables[table] = rows
	}
	rows[tableKey{rec.PartitionKey, rec.SortKey}] = rec
	return nil
}

func (s *Store) Get(_ context.Context, table, partitionKey, sortKey string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tables[table][tableKey{partitionKey, sortKey}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) QueryByPartition(_ context.Context, table, partitionKey string, limit int32) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for key, rec := range s.tables[table] {
		if key.partitionKey != partitionKey {
			continue
		}
		out = append(out, rec)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) QueryByIndex(_ context.Context, table, _ string, reference string, limit int32) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, rec := range s.tables[table] {
		if rec.Reference != reference {
			continue
		}
		out = append(out, rec)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// All returns every row of a table; test helper.
func (s *Store) All(table string) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, rec := range s.tables[table] {
		out = append(out, rec)
	}
	return out
}
