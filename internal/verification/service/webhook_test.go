package service

import (
	"encoding/json"
	"time"

	"attest/internal/verification/models"
	"attest/internal/verification/signature"
)

func (s *ServiceSuite) signedBody(payload map[string]any) ([]byte, string) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)
	return body, signature.Sign(body, testSecret)
}

func (s *ServiceSuite) TestWebhookRejectsBadTag() {
	svc := s.newService()
	body, _ := s.signedBody(map[string]any{"reference": "ref-1", "event": models.EventAccepted})

	result := svc.HandleDecisionWebhook(s.ctx, body, "0000")
	s.False(result.OK)
	s.Empty(s.store.All(testTable))
}

func (s *ServiceSuite) TestWebhookRejectsUnparsableBody() {
	svc := s.newService()
	body := []byte(`{"reference": truncated`)

	result := svc.HandleDecisionWebhook(s.ctx, body, signature.Sign(body, testSecret))
	s.False(result.OK)
	s.Empty(s.store.All(testTable))
}

func (s *ServiceSuite) TestWebhookAppendsAndProjects() {
	s.seedAttempt("user-1", "ref-1", models.EventPending, s.base.Add(-time.Hour))
	svc := s.newService()

	body, tag := s.signedBody(map[string]any{
		"reference": "ref-1",
		"event":     models.EventAccepted,
		"decision":  "approved",
	})
	result := svc.HandleDecisionWebhook(s.ctx, body, tag)

	s.Require().True(result.OK)
	s.Equal("ref-1", result.Reference)
	s.Equal(models.EventAccepted, result.Event)

	events := s.rowsOfType(models.TypeWebhookEvent)
	s.Require().Len(events, 1)
	s.Equal("user-1", events[0].PartitionKey)
	s.Equal("ref-1", events[0].Reference)
	s.Equal("approved", events[0].Payload["decision"])

	meta, err := s.store.Get(s.ctx, testTable, models.MetaPartitionKey("ref-1"), models.MetaSortKey)
	s.Require().NoError(err)
	s.Require().NotNil(meta)
	s.Equal(models.EventAccepted, meta.Status)
	s.Equal(models.EventAccepted, meta.LastEvent)
	// Fields the payload does not carry survive from the previous projection.
	s.Equal("https://verify.example/v/ref-1", meta.VerificationURL)
	s.Equal(models.Timestamp(s.base.Add(-time.Hour)), meta.CreatedAt)
}

func (s *ServiceSuite) TestWebhookUnknownReferenceStillRecorded() {
	svc := s.newService()

	body, tag := s.signedBody(map[string]any{
		"reference":  "ref-never-seen",
		"event":      models.EventStatusChanged,
		"vendorData": "user-9",
	})
	result := svc.HandleDecisionWebhook(s.ctx, body, tag)

	s.Require().True(result.OK)
	events := s.rowsOfType(models.TypeWebhookEvent)
	s.Require().Len(events, 1)
	s.Equal("user-9", events[0].UserID)

	meta, err := s.store.Get(s.ctx, testTable, models.MetaPartitionKey("ref-never-seen"), models.MetaSortKey)
	s.Require().NoError(err)
	s.Require().NotNil(meta)
	s.Equal("user-9", meta.UserID)
	s.Equal(models.EventStatusChanged, meta.Status)
}

func (s *ServiceSuite) TestWebhookMissingFieldsDefaultToUnknown() {
	svc := s.newService()

	body, tag := s.signedBody(map[string]any{"decision": "noise"})
	result := svc.HandleDecisionWebhook(s.ctx, body, tag)

	s.Require().True(result.OK)
	s.Equal(models.StatusUnknown, result.Reference)
	s.Equal(models.StatusUnknown, result.Event)

	events := s.rowsOfType(models.TypeWebhookEvent)
	s.Require().Len(events, 1)
	s.Equal(models.StatusUnknown, events[0].UserID)
}
