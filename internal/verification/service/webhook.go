package service

import (
	"context"
	"encoding/json"

	"attest/internal/verification/models"
	"attest/internal/verification/signature"
	dErrors "attest/pkg/domain-errors"
)

// HandleDecisionWebhook reconciles an inbound provider callback against the
// ledger. The boundary is adversarial: an invalid tag or unparsable body is a
// soft failure with zero side effects, never an error to the transport.
func (s *Service) HandleDecisionWebhook(ctx context.Context, body []byte, tag string) models.WebhookResult {
	if !signature.Verify(body, tag, s.cfg.SharedSecret) {
		s.report(ctx, dErrors.New(dErrors.CodeUntrustedResponse, "webhook signature mismatch"),
			"operation", "decision_webhook")
		if s.metrics != nil {
			s.metrics.RecordWebhook("rejected")
		}
		return models.WebhookResult{OK: false}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		s.report(ctx, dErrors.Wrap(err, dErrors.CodeMalformedResponse, "webhook body is not valid JSON"),
			"operation", "decision_webhook")
		if s.metrics != nil {
			s.metrics.RecordWebhook("malformed")
		}
		return models.WebhookResult{OK: false}
	}

	reference := payloadString(payload, "reference")
	event := payloadString(payload, "event")
	if reference == "" {
		reference = models.StatusUnknown
	}
	if event == "" {
		event = models.StatusUnknown
	}

	meta := s.lookupMeta(ctx, reference)

	userID := models.StatusUnknown
	switch {
	case meta != nil && meta.UserID != "":
		userID = meta.UserID
	case payloadString(payload, "user_id") != "":
		userID = payloadString(payload, "user_id")
	case payloadString(payload, "vendorData") != "":
		userID = payloadString(payload, "vendorData")
	}

	now := s.now()
	entry := models.NewTimelineEntry(models.TypeWebhookEvent, userID, reference, event, now)
	entry.Payload = payload

	projection := models.NewMetaProjection(userID, reference, event, now)
	if url := payloadString(payload, "verificationUrl"); url != "" {
		projection.VerificationURL = url
	} else if meta != nil {
		projection.VerificationURL = meta.VerificationURL
	}
	if lang := payloadString(payload, "language"); lang != "" {
		projection.Language = lang
	} else if meta != nil {
		projection.Language = meta.Language
	}
	if meta != nil && meta.CreatedAt != "" {
		projection.CreatedAt = meta.CreatedAt
	}

	if err := s.store.Put(ctx, s.cfg.Table, entry); err != nil {
		s.report(ctx, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append webhook event"),
			"operation", "decision_webhook", "reference", reference)
		if s.metrics != nil {
			s.metrics.RecordWebhook("store_error")
		}
		return models.WebhookResult{OK: false}
	}
	if err := s.store.Put(ctx, s.cfg.Table, projection); err != nil {
		s.report(ctx, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status projection"),
			"operation", "decision_webhook", "reference", reference)
		if s.metrics != nil {
			s.metrics.RecordWebhook("store_error")
		}
		return models.WebhookResult{OK: false}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook reconciled",
			"reference", reference,
			"event", event,
			"user_id", userID,
		)
	}
	if s.metrics != nil {
		s.metrics.RecordWebhook("processed")
	}

	return models.WebhookResult{OK: true, Reference: reference, Event: event}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return v
}
