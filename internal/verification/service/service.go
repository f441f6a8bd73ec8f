// Package service implements the verification-session ledger and
// reconciliation engine: reuse-or-create resolution, session creation against
// the external provider, webhook reconciliation, and status queries. All
// state lives in the ledger store; the only in-process state is the rate
// guard's window and the per-user creation locks.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"attest/internal/platform/metrics"
	"attest/internal/verification/ports"
	"attest/internal/verification/provider"
	"attest/internal/verification/rateguard"
)

// scanLimit caps how many timeline entries one resolution scan reads.
const scanLimit = 50

// ProviderClient is the outbound session API the creator depends on.
type ProviderClient interface {
	CreateSession(ctx context.Context, payload provider.SessionRequest) (*provider.Response, error)
}

// Config is the immutable verification configuration, built once by
// cmd/server and injected here.
type Config struct {
	// Table and ReferenceIndex address the shared ledger table.
	Table          string
	ReferenceIndex string

	// SharedSecret authenticates provider responses and webhook bodies.
	SharedSecret string

	CallbackURL string
	RedirectURL string

	// Languages maps lowercase locales (and primary subtags) to supported
	// provider language codes. DefaultLanguage is used when nothing matches.
	DefaultLanguage string
	Languages       map[string]string
}

// Service is the verification core. Construct with New; the zero value is not
// usable.
type Service struct {
	store    ports.LedgerStore
	provider ProviderClient
	guard    *rateguard.Guard
	cfg      Config

	logger  *slog.Logger
	sink    ports.ErrorSink
	metrics *metrics.Metrics

	now    func() time.Time
	newRef func() string

	// creationLocks serializes resolve-then-create per user within this
	// process. Replicas can still race; that gap is accepted.
	creationLocks keyedMutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithErrorSink(sink ports.ErrorSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithReferenceGenerator overrides reference minting, for deterministic tests.
func WithReferenceGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newRef = gen
	}
}

func New(store ports.LedgerStore, providerClient ProviderClient, guard *rateguard.Guard, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if providerClient == nil {
		return nil, errors.New("provider client is required")
	}
	if guard == nil {
		return nil, errors.New("rate guard is required")
	}
	if cfg.Table == "" {
		return nil, errors.New("ledger table name is required")
	}

	s := &Service{
		store:    store,
		provider: providerClient,
		guard:    guard,
		cfg:      cfg,
		now:      time.Now,
		newRef:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// report forwards a hard failure to the error sink, if one is configured.
func (s *Service) report(ctx context.Context, err error, attrs ...any) {
	if s.sink != nil {
		s.sink.Report(ctx, err, attrs...)
	}
}

// keyedMutex hands out one mutex per key. Mutexes are never evicted; the set
// of active users in one process stays small enough not to matter.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
