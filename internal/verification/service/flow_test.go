package service

import (
	"context"

	"attest/internal/verification/models"
	"attest/internal/verification/provider"
)

// TestFullLifecycle walks one user through the whole flow: fresh session,
// idempotent repeat call, decision webhook, and validated lookups.
func (s *ServiceSuite) TestFullLifecycle() {
	s.provider.createFn = func(context.Context, provider.SessionRequest) (*provider.Response, error) {
		return signedResponse(201, `{"status":"success","verification":{"id":"prov-7","url":"https://verify.example/v/flow","status":"request.pending"}}`), nil
	}
	svc := s.newService()

	// First call creates a session.
	created, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-flow", Locale: "en-US"})
	s.Require().NoError(err)
	s.Equal("ref-001", created.Reference)
	s.Equal(models.EventPending, created.Status)
	s.Equal(1, s.provider.calls)

	// Second call reuses the in-progress attempt instead of minting another.
	repeat, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-flow"})
	s.Require().NoError(err)
	s.True(repeat.AlreadyHasActive)
	s.Equal("ref-001", repeat.Reference)
	s.Equal(1, s.provider.calls)

	validated, err := svc.IsUserValidated(s.ctx, "user-flow")
	s.Require().NoError(err)
	s.False(validated)

	// The provider decides; the webhook flips the projection to accepted.
	body, tag := s.signedBody(map[string]any{
		"reference": "ref-001",
		"event":     models.EventAccepted,
	})
	outcome := svc.HandleDecisionWebhook(s.ctx, body, tag)
	s.Require().True(outcome.OK)

	validated, err = svc.IsUserValidated(s.ctx, "user-flow")
	s.Require().NoError(err)
	s.True(validated)

	// Further session calls short-circuit on the accepted attempt.
	again, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-flow"})
	s.Require().NoError(err)
	s.True(again.AlreadyValidated)
	s.Equal("ref-001", again.Reference)
	s.Equal(1, s.provider.calls)

	// The ledger keeps the full history for the reference.
	bundle, err := svc.RecordByReference(s.ctx, "ref-001")
	s.Require().NoError(err)
	s.Require().NotNil(bundle)
	s.Len(bundle.Requests, 1)
	s.Len(bundle.WebhookEvents, 1)
	s.Equal(models.EventAccepted, bundle.Meta.Status)
}
