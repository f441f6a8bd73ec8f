package service

import (
	"context"
	"strings"

	"attest/internal/verification/models"
	dErrors "attest/pkg/domain-errors"
)

// RecordByReference assembles every ledger row known for one reference.
// Returns nil when the reference is unknown.
func (s *Service) RecordByReference(ctx context.Context, reference string) (*models.RecordBundle, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reference is required")
	}

	rows, err := s.store.QueryByIndex(ctx, s.cfg.Table, s.cfg.ReferenceIndex, reference, scanLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query reference index")
	}

	bundle := &models.RecordBundle{
		Reference:     reference,
		Requests:      []models.Record{},
		WebhookEvents: []models.Record{},
		StatusChanges: []models.Record{},
	}
	for i := range rows {
		switch rows[i].Type {
		case models.TypeMeta:
			meta := rows[i]
			bundle.Meta = &meta
		case models.TypeVerificationRequest:
			bundle.Requests = append(bundle.Requests, rows[i])
		case models.TypeWebhookEvent:
			bundle.WebhookEvents = append(bundle.WebhookEvents, rows[i])
		case models.TypeStatusChange:
			bundle.StatusChanges = append(bundle.StatusChanges, rows[i])
		}
	}

	if bundle.Meta == nil {
		meta, err := s.store.Get(ctx, s.cfg.Table, models.MetaPartitionKey(reference), models.MetaSortKey)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up status projection")
		}
		bundle.Meta = meta
	}

	if bundle.Meta == nil && len(rows) == 0 {
		return nil, nil
	}
	return bundle, nil
}

// IsUserValidated reports whether the user has any accepted attempt, scanning
// the timeline the same way the session resolver does.
func (s *Service) IsUserValidated(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, dErrors.New(dErrors.CodeValidation, "userId is required")
	}

	resolution, err := s.resolveExisting(ctx, userID)
	if err != nil {
		return false, err
	}
	return resolution != nil && resolution.AlreadyValidated, nil
}

// UpdateRecordStatus applies an operator override: it overwrites the status
// projection and appends a status_change entry. Returns false with no side
// effects when the reference has no projection to override.
func (s *Service) UpdateRecordStatus(ctx context.Context, reference, newStatus string) (bool, error) {
	if strings.TrimSpace(reference) == "" {
		return false, dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	if strings.TrimSpace(newStatus) == "" {
		return false, dErrors.New(dErrors.CodeValidation, "status is required")
	}

	meta := s.lookupMeta(ctx, reference)
	if meta == nil {
		s.report(ctx, dErrors.Newf(dErrors.CodeNotFound, "no status projection for reference %s", reference),
			"operation", "update_record_status", "reference", reference)
		return false, nil
	}

	now := s.now()
	projection := models.NewMetaProjection(meta.UserID, reference, newStatus, now)
	projection.VerificationURL = meta.VerificationURL
	projection.Language = meta.Language
	if meta.CreatedAt != "" {
		projection.CreatedAt = meta.CreatedAt
	}

	if err := s.store.Put(ctx, s.cfg.Table, projection); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to overwrite status projection")
	}

	entry := models.NewTimelineEntry(models.TypeStatusChange, meta.UserID, reference, newStatus, now)
	entry.Payload = map[string]any{"overriddenFrom": meta.Status}
	if err := s.store.Put(ctx, s.cfg.Table, entry); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append status change")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "record status overridden",
			"reference", reference,
			"status", newStatus,
		)
	}
	return true, nil
}
