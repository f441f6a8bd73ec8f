package service

import (
	"context"
	"encoding/json"
	"strings"

	"attest/internal/verification/models"
	"attest/internal/verification/provider"
	"attest/internal/verification/signature"
	dErrors "attest/pkg/domain-errors"
)

// StartSessionInput carries the caller's session request. UserID is required;
// locale, country, and mode are hints forwarded to the provider.
type StartSessionInput struct {
	UserID  string `json:"userId"`
	Locale  string `json:"locale,omitempty"`
	Country string `json:"country,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// StartSession reuses an accepted or active attempt when one exists, and
// otherwise creates a new session with the provider.
func (s *Service) StartSession(ctx context.Context, input StartSessionInput) (*models.SessionResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "userId is required")
	}

	unlock := s.creationLocks.lock(input.UserID)
	defer unlock()

	resolution, err := s.resolveExisting(ctx, input.UserID)
	if err != nil {
		s.report(ctx, err, "operation", "start_session", "user_id", input.UserID)
		return nil, err
	}
	if resolution != nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "reusing existing verification attempt",
				"user_id", input.UserID,
				"reference", resolution.Reference,
				"status", resolution.Status,
			)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionReused(resolution.AlreadyValidated)
		}
		return &models.SessionResult{
			AlreadyValidated: resolution.AlreadyValidated,
			AlreadyHasActive: resolution.AlreadyHasActive,
			Reference:        resolution.Reference,
			Status:           resolution.Status,
			VerificationURL:  resolution.VerificationURL,
		}, nil
	}

	return s.createSession(ctx, input)
}

func (s *Service) createSession(ctx context.Context, input StartSessionInput) (*models.SessionResult, error) {
	s.guard.Account(ctx, "start_session")

	reference := s.newRef()
	lang := s.resolveLanguage(input.Locale)
	now := s.now()

	payload := provider.SessionRequest{
		Verification: provider.VerificationRequest{
			Callback:   s.cfg.CallbackURL,
			Redirect:   s.cfg.RedirectURL,
			VendorData: input.UserID,
			Lang:       lang,
			Features:   []string{"document"},
			AutoStart:  true,
			Document: provider.Document{
				Type:    "ID_CARD",
				Country: strings.ToUpper(input.Country),
			},
			Instructions: s.mergeInstructions(input),
			Timestamp:    models.Timestamp(now),
		},
	}

	resp, err := s.provider.CreateSession(ctx, payload)
	if err != nil {
		s.report(ctx, err, "operation", "create_session", "reference", reference)
		return nil, err
	}

	var envelope provider.SessionEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		hard := dErrors.Wrap(err, dErrors.CodeMalformedResponse, "provider response is not valid JSON")
		s.report(ctx, hard, "operation", "create_session", "reference", reference)
		return nil, hard
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Recorded but non-fatal: the attempt row is still persisted so the
		// caller has a reference to inspect or retry.
		rejected := dErrors.Newf(dErrors.CodeProviderRejected, "provider returned status %d", resp.StatusCode)
		s.report(ctx, rejected, "operation", "create_session", "reference", reference, "status_code", resp.StatusCode)
		if s.metrics != nil {
			s.metrics.RecordProviderRejection()
		}
	}

	if !signature.Verify(resp.Body, resp.Signature, s.cfg.SharedSecret) {
		hard := dErrors.New(dErrors.CodeUntrustedResponse, "provider response signature mismatch")
		s.report(ctx, hard, "operation", "create_session", "reference", reference)
		return nil, hard
	}

	event := envelope.Verification.Status
	if event == "" {
		event = models.EventPending
	}

	entry := models.NewTimelineEntry(models.TypeVerificationRequest, input.UserID, reference, event, now)
	entry.VerificationURL = envelope.Verification.URL
	entry.Language = lang
	if envelope.Verification.ID != "" {
		entry.Payload = map[string]any{"providerId": envelope.Verification.ID}
	}

	meta := models.NewMetaProjection(input.UserID, reference, event, now)
	meta.VerificationURL = envelope.Verification.URL
	meta.Language = lang

	if err := s.store.Put(ctx, s.cfg.Table, entry); err != nil {
		hard := dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification request")
		s.report(ctx, hard, "operation", "create_session", "reference", reference)
		return nil, hard
	}
	if err := s.store.Put(ctx, s.cfg.Table, meta); err != nil {
		hard := dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist status projection")
		s.report(ctx, hard, "operation", "create_session", "reference", reference)
		return nil, hard
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification session created",
			"user_id", input.UserID,
			"reference", reference,
			"event", event,
		)
	}
	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}

	return &models.SessionResult{
		Reference:       reference,
		Status:          event,
		VerificationURL: envelope.Verification.URL,
	}, nil
}

// resolveLanguage normalizes a caller locale to a supported language code:
// exact match, then primary subtag, then the configured default.
func (s *Service) resolveLanguage(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale != "" {
		if lang, ok := s.cfg.Languages[locale]; ok {
			return lang
		}
		if primary, _, found := strings.Cut(locale, "-"); found {
			if lang, ok := s.cfg.Languages[primary]; ok {
				return lang
			}
		}
	}
	return s.cfg.DefaultLanguage
}

func (s *Service) mergeInstructions(input StartSessionInput) map[string]any {
	instructions := map[string]any{}
	if input.Mode != "" {
		instructions["mode"] = input.Mode
	}
	if input.Country != "" {
		instructions["country"] = strings.ToUpper(input.Country)
	}
	if len(instructions) == 0 {
		return nil
	}
	return instructions
}
