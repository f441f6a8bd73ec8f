package service

import (
	"context"
	"time"

	"attest/internal/verification/models"
	"attest/internal/verification/provider"
)

func (s *ServiceSuite) TestReuseActiveAttempt() {
	s.seedAttempt("user-1", "ref-old", models.EventReceived, s.base.Add(-time.Hour))
	svc := s.newService()

	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.True(result.AlreadyHasActive)
	s.False(result.AlreadyValidated)
	s.Equal("ref-old", result.Reference)
	s.Equal(models.EventReceived, result.Status)
	s.Equal("https://verify.example/v/ref-old", result.VerificationURL)
	s.Zero(s.provider.calls)
}

func (s *ServiceSuite) TestReuseAcceptedAttempt() {
	s.seedAttempt("user-1", "ref-done", models.EventAccepted, s.base.Add(-time.Hour))
	svc := s.newService()

	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.True(result.AlreadyValidated)
	s.False(result.AlreadyHasActive)
	s.Equal("ref-done", result.Reference)
	s.Zero(s.provider.calls)
}

func (s *ServiceSuite) TestAcceptedBeatsNewerActive() {
	s.seedAttempt("user-1", "ref-accepted", models.EventAccepted, s.base.Add(-2*time.Hour))
	s.seedAttempt("user-1", "ref-active", models.EventPending, s.base.Add(-time.Hour))
	svc := s.newService()

	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.True(result.AlreadyValidated)
	s.Equal("ref-accepted", result.Reference)
}

func (s *ServiceSuite) TestNewestActiveWins() {
	s.seedAttempt("user-1", "ref-older", models.EventPending, s.base.Add(-2*time.Hour))
	s.seedAttempt("user-1", "ref-newer", models.EventReviewPending, s.base.Add(-time.Hour))
	svc := s.newService()

	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.True(result.AlreadyHasActive)
	s.Equal("ref-newer", result.Reference)
}

func (s *ServiceSuite) TestTerminalAttemptFallsThrough() {
	s.seedAttempt("user-1", "ref-declined", "verification.declined", s.base.Add(-time.Hour))
	s.provider.createFn = func(context.Context, provider.SessionRequest) (*provider.Response, error) {
		return signedResponse(201, `{"verification":{"url":"https://verify.example/v/new","status":"request.pending"}}`), nil
	}
	svc := s.newService()

	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.False(result.AlreadyHasActive)
	s.False(result.AlreadyValidated)
	s.Equal("ref-001", result.Reference)
	s.Equal(1, s.provider.calls)
}

func (s *ServiceSuite) TestMetaStatusOverridesEntryEvent() {
	// The entry says pending but a webhook has since moved the projection to
	// accepted; the projection is authoritative.
	at := s.base.Add(-time.Hour)
	entry := models.NewTimelineEntry(models.TypeVerificationRequest, "user-1", "ref-x", models.EventPending, at)
	s.Require().NoError(s.store.Put(s.ctx, testTable, entry))
	meta := models.NewMetaProjection("user-1", "ref-x", models.EventAccepted, at.Add(time.Minute))
	s.Require().NoError(s.store.Put(s.ctx, testTable, meta))

	svc := s.newService()
	validated, err := svc.IsUserValidated(s.ctx, "user-1")
	s.Require().NoError(err)
	s.True(validated)
}

func (s *ServiceSuite) TestMissingMetaFallsBackToEntryEvent() {
	at := s.base.Add(-time.Hour)
	entry := models.NewTimelineEntry(models.TypeVerificationRequest, "user-1", "ref-x", models.EventReceived, at)
	entry.VerificationURL = "https://verify.example/v/ref-x"
	s.Require().NoError(s.store.Put(s.ctx, testTable, entry))

	svc := s.newService()
	result, err := svc.StartSession(s.ctx, StartSessionInput{UserID: "user-1"})
	s.Require().NoError(err)
	s.True(result.AlreadyHasActive)
	s.Equal(models.EventReceived, result.Status)
	s.Equal("https://verify.example/v/ref-x", result.VerificationURL)
}

func (s *ServiceSuite) TestIsUserValidatedRequiresUserID() {
	svc := s.newService()
	_, err := svc.IsUserValidated(s.ctx, "")
	s.Error(err)
}

func (s *ServiceSuite) TestIsUserValidatedNoHistory() {
	svc := s.newService()
	validated, err := svc.IsUserValidated(s.ctx, "user-unseen")
	s.Require().NoError(err)
	s.False(validated)
}
