package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/verification/models"
)

const testTable = "verification_ledger"

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestPutGet() {
	s.Run("missing row returns nil without error", func() {
		rec, err := s.store.Get(s.ctx, testTable, "u1", "missing")
		s.Require().NoError(err)
		s.Nil(rec)
	})

	s.Run("put then get round trips", func() {
		entry := models.NewTimelineEntry(models.TypeVerificationRequest, "u1", "ref-1", models.EventPending, time.Now())
		s.Require().NoError(s.store.Put(s.ctx, testTable, entry))

		got, err := s.store.Get(s.ctx, testTable, entry.PartitionKey, entry.SortKey)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal("ref-1", got.Reference)
		s.Equal(models.EventPending, got.Event)
	})

	s.Run("put overwrites same key", func() {
		meta := models.NewMetaProjection("u1", "ref-2", models.EventPending, time.Now())
		s.Require().NoError(s.store.Put(s.ctx, testTable, meta))

		meta.Status = models.EventAccepted
		s.Require().NoError(s.store.Put(s.ctx, testTable, meta))

		got, err := s.store.Get(s.ctx, testTable, meta.PartitionKey, meta.SortKey)
		s.Require().NoError(err)
		s.Equal(models.EventAccepted, got.Status)
		s.Len(s.store.All(testTable), 1)
	})
}

func (s *MemoryStoreSuite) TestQueryByPartition() {
	base := time.Now()
	for i := range 5 {
		entry := models.NewTimelineEntry(models.TypeVerificationRequest, "u1", "ref", models.EventPending, base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Put(s.ctx, testTable, entry))
	}
	other := models.NewTimelineEntry(models.TypeVerificationRequest, "u2", "ref-x", models.EventPending, base)
	s.Require().NoError(s.store.Put(s.ctx, testTable, other))

	s.Run("returns only the partition", func() {
		rows, err := s.store.QueryByPartition(s.ctx, testTable, "u1", 50)
		s.Require().NoError(err)
		s.Len(rows, 5)
	})

	s.Run("caps at limit", func() {
		rows, err := s.store.QueryByPartition(s.ctx, testTable, "u1", 3)
		s.Require().NoError(err)
		s.Len(rows, 3)
	})

	s.Run("unknown partition is empty", func() {
		rows, err := s.store.QueryByPartition(s.ctx, testTable, "nobody", 50)
		s.Require().NoError(err)
		s.Empty(rows)
	})
}

func (s *MemoryStoreSuite) TestQueryByIndex() {
	now := time.Now()
	entry := models.NewTimelineEntry(models.TypeVerificationRequest, "u1", "ref-9", models.EventPending, now)
	meta := models.NewMetaProjection("u1", "ref-9", models.EventPending, now)
	s.Require().NoError(s.store.Put(s.ctx, testTable, entry))
	s.Require().NoError(s.store.Put(s.ctx, testTable, meta))

	rows, err := s.store.QueryByIndex(s.ctx, testTable, "reference-index", "ref-9", 50)
	s.Require().NoError(err)
	s.Len(rows, 2, "timeline entry and meta row share the reference index")

	types := map[models.RecordType]bool{}
	for _, r := range rows {
		types[r.Type] = true
	}
	s.True(types[models.TypeMeta])
	s.True(types[models.TypeVerificationRequest])
}
