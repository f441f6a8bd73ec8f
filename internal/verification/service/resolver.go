package service

import (
	"context"
	"sort"

	"attest/internal/verification/models"
	dErrors "attest/pkg/domain-errors"
)

// resolveExisting scans the user's recent timeline and decides whether an
// existing attempt should be reused. A nil resolution means no reusable
// attempt exists and a new session should be created.
//
// The store returns partitions unordered; entries are sorted newest-first on
// created_at before scanning so "first active match" has a defined meaning.
// An ACCEPTED attempt found anywhere in the scan wins over an earlier active
// candidate.
func (s *Service) resolveExisting(ctx context.Context, userID string) (*models.Resolution, error) {
	entries, err := s.store.QueryByPartition(ctx, s.cfg.Table, userID, scanLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan user timeline")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})

	var active *models.Resolution
	for i := range entries {
		entry := &entries[i]
		if entry.Type != models.TypeVerificationRequest {
			continue
		}

		meta := s.lookupMeta(ctx, entry.Reference)

		status := models.StatusUnknown
		if meta != nil && meta.Status != "" {
			status = meta.Status
		} else if entry.Event != "" {
			status = entry.Event
		}

		url := ""
		if meta != nil && meta.VerificationURL != "" {
			url = meta.VerificationURL
		} else if entry.VerificationURL != "" {
			url = entry.VerificationURL
		}

		if status == models.EventAccepted {
			return &models.Resolution{
				AlreadyValidated: true,
				Reference:        entry.Reference,
				Status:           status,
				VerificationURL:  url,
			}, nil
		}

		if active == nil && models.IsActive(status) {
			active = &models.Resolution{
				AlreadyHasActive: true,
				Reference:        entry.Reference,
				Status:           status,
				VerificationURL:  url,
			}
		}
	}

	return active, nil
}

// lookupMeta resolves the meta projection for a reference: the meta row from
// the reference index if present, else an arbitrary row from that query, else
// a direct point lookup. Store failures degrade to "no meta known" so one bad
// row cannot take down a whole scan.
func (s *Service) lookupMeta(ctx context.Context, reference string) *models.Record {
	if reference == "" {
		return nil
	}

	rows, err := s.store.QueryByIndex(ctx, s.cfg.Table, s.cfg.ReferenceIndex, reference, scanLimit)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "reference index lookup failed", "reference", reference, "error", err)
		}
		rows = nil
	}

	var fallback *models.Record
	for i := range rows {
		if rows[i].Type == models.TypeMeta {
			return &rows[i]
		}
		if fallback == nil {
			fallback = &rows[i]
		}
	}
	if fallback != nil {
		return fallback
	}

	meta, err := s.store.Get(ctx, s.cfg.Table, models.MetaPartitionKey(reference), models.MetaSortKey)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "meta point lookup failed", "reference", reference, "error", err)
		}
		return nil
	}
	return meta
}
