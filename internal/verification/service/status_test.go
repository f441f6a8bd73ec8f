package service

import (
	"time"

	"attest/internal/verification/models"
)

func (s *ServiceSuite) TestRecordByReferenceRequiresReference() {
	svc := s.newService()
	_, err := svc.RecordByReference(s.ctx, "  ")
	s.Error(err)
}

func (s *ServiceSuite) TestRecordByReferenceUnknown() {
	svc := s.newService()
	bundle, err := svc.RecordByReference(s.ctx, "ref-unknown")
	s.Require().NoError(err)
	s.Nil(bundle)
}

func (s *ServiceSuite) TestRecordByReferenceGroupsRows() {
	at := s.base.Add(-time.Hour)
	s.seedAttempt("user-1", "ref-1", models.EventPending, at)

	webhook := models.NewTimelineEntry(models.TypeWebhookEvent, "user-1", "ref-1", models.EventReceived, at.Add(time.Minute))
	s.Require().NoError(s.store.Put(s.ctx, testTable, webhook))
	override := models.NewTimelineEntry(models.TypeStatusChange, "user-1", "ref-1", models.EventAccepted, at.Add(2*time.Minute))
	s.Require().NoError(s.store.Put(s.ctx, testTable, override))

	svc := s.newService()
	bundle, err := svc.RecordByReference(s.ctx, "ref-1")
	s.Require().NoError(err)
	s.Require().NotNil(bundle)
	s.Equal("ref-1", bundle.Reference)
	s.Require().NotNil(bundle.Meta)
	s.Equal(models.EventPending, bundle.Meta.Status)
	s.Len(bundle.Requests, 1)
	s.Len(bundle.WebhookEvents, 1)
	s.Len(bundle.StatusChanges, 1)
}

func (s *ServiceSuite) TestUpdateRecordStatusValidation() {
	svc := s.newService()

	_, err := svc.UpdateRecordStatus(s.ctx, "", "verification.accepted")
	s.Error(err)

	_, err = svc.UpdateRecordStatus(s.ctx, "ref-1", " ")
	s.Error(err)
}

func (s *ServiceSuite) TestUpdateRecordStatusUnknownReference() {
	svc := s.newService()

	updated, err := svc.UpdateRecordStatus(s.ctx, "ref-missing", models.EventAccepted)
	s.Require().NoError(err)
	s.False(updated)
	s.Empty(s.store.All(testTable))
}

func (s *ServiceSuite) TestUpdateRecordStatusOverrides() {
	at := s.base.Add(-time.Hour)
	s.seedAttempt("user-1", "ref-1", models.EventPending, at)
	svc := s.newService()

	updated, err := svc.UpdateRecordStatus(s.ctx, "ref-1", models.EventAccepted)
	s.Require().NoError(err)
	s.True(updated)

	meta, err := s.store.Get(s.ctx, testTable, models.MetaPartitionKey("ref-1"), models.MetaSortKey)
	s.Require().NoError(err)
	s.Require().NotNil(meta)
	s.Equal(models.EventAccepted, meta.Status)
	s.Equal("https://verify.example/v/ref-1", meta.VerificationURL)
	s.Equal(models.Timestamp(at), meta.CreatedAt)

	changes := s.rowsOfType(models.TypeStatusChange)
	s.Require().Len(changes, 1)
	s.Equal("user-1", changes[0].PartitionKey)
	s.Equal(models.EventAccepted, changes[0].Event)
	s.Equal(models.EventPending, changes[0].Payload["overriddenFrom"])
}
