// Package ports defines the contracts the verification core consumes.
// Interfaces live here when more than one component depends on them.
package ports

import (
	"context"
	"log/slog"

	"attest/internal/verification/models"
)

// LedgerStore is the key-value contract the core requires from the storage
// engine: point put, point get, and partition queries, optionally through the
// reference secondary index. Query results are unordered; callers that need
// an order must sort on created_at themselves.
type LedgerStore interface {
	// Put upserts a record by its own key fields.
	Put(ctx context.Context, table string, rec models.Record) error

	// Get performs a point lookup. A missing row returns (nil, nil).
	Get(ctx context.Context, table, partitionKey, sortKey string) (*models.Record, error)

	// QueryByPartition returns up to limit rows sharing a partition key.
	QueryByPartition(ctx context.Context, table, partitionKey string, limit int32) ([]models.Record, error)

	// QueryByIndex returns up to limit rows for a reference via the secondary index.
	QueryByIndex(ctx context.Context, table, index, reference string, limit int32) ([]models.Record, error)
}

// ErrorSink receives hard failures before they surface, so operations teams
// see them without this core owning remediation.
type ErrorSink interface {
	Report(ctx context.Context, err error, attrs ...any)
}

// SlogSink reports errors through a structured logger. It is the default sink
// wired by cmd/server; deployments with an external reporter provide their own.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Report(ctx context.Context, err error, attrs ...any) {
	if s.Logger == nil || err == nil {
		return
	}
	args := append([]any{"error", err.Error()}, attrs...)
	s.Logger.ErrorContext(ctx, "verification error reported", args...)
}
