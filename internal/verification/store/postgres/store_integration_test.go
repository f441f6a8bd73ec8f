//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"attest/internal/verification/models"
	"attest/internal/verification/store/postgres"
)

const testTable = "verification_ledger"

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("attest"),
		tcpostgres.WithUsername("attest"),
		tcpostgres.WithPassword("attest"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)

	s.store = postgres.New(s.pool)
	s.Require().NoError(s.store.EnsureSchema(ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE ledger_records")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	entry := models.NewTimelineEntry(models.TypeVerificationRequest, "u1", "ref-1", models.EventPending, time.Now())
	entry.VerificationURL = "https://verify.example.com/ref-1"
	s.Require().NoError(s.store.Put(ctx, testTable, entry))

	got, err := s.store.Get(ctx, testTable, entry.PartitionKey, entry.SortKey)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(entry.Reference, got.Reference)
	s.Equal(entry.VerificationURL, got.VerificationURL)

	missing, err := s.store.Get(ctx, testTable, "u1", "nope")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *PostgresStoreSuite) TestPutOverwrites() {
	ctx := context.Background()
	meta := models.NewMetaProjection("u1", "ref-2", models.EventPending, time.Now())
	s.Require().NoError(s.store.Put(ctx, testTable, meta))

	meta.Status = models.EventAccepted
	s.Require().NoError(s.store.Put(ctx, testTable, meta))

	got, err := s.store.Get(ctx, testTable, meta.PartitionKey, meta.SortKey)
	s.Require().NoError(err)
	s.Equal(models.EventAccepted, got.Status)
}

func (s *PostgresStoreSuite) TestQueries() {
	ctx := context.Background()
	base := time.Now()
	for i := range 4 {
		entry := models.NewTimelineEntry(models.TypeVerificationRequest, "u1", "ref-3", models.EventPending, base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Put(ctx, testTable, entry))
	}
	meta := models.NewMetaProjection("u1", "ref-3", models.EventPending, base)
	s.Require().NoError(s.store.Put(ctx, testTable, meta))

	rows, err := s.store.QueryByPartition(ctx, testTable, "u1", 50)
	s.Require().NoError(err)
	s.Len(rows, 4)

	rows, err = s.store.QueryByPartition(ctx, testTable, "u1", 2)
	s.Require().NoError(err)
	s.Len(rows, 2)

	rows, err = s.store.QueryByIndex(ctx, testTable, "reference-index", "ref-3", 50)
	s.Require().NoError(err)
	s.Len(rows, 5, "timeline entries plus the meta row")
}
