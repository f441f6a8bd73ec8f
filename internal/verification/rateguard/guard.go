// Package rateguard implements the advisory request-rate guard. It counts
// session-creation calls in a sliding window and, past a per-minute threshold,
// writes one advisory ledger record and one warn log per call. It never
// rejects or delays anything; admission control belongs elsewhere.
package rateguard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attest/internal/verification/models"
	"attest/internal/verification/ports"
)

// DefaultWindow is the sliding window length the advisory threshold counts over.
const DefaultWindow = time.Minute

// alertPartition is the partition key advisory records are filed under.
const alertPartition = "rate_alert"

// Window tracks recent call timestamps. Add appends now, drops entries older
// than the window, and returns the resulting count. Implementations must be
// safe for concurrent use.
type Window interface {
	Add(ctx context.Context, now time.Time) (int, error)
}

// Guard accounts calls against a Window and emits advisories past threshold.
type Guard struct {
	window    Window
	threshold int
	store     ports.LedgerStore
	table     string
	logger    *slog.Logger
	onAlert   func()
	now       func() time.Time
}

type Option func(*Guard)

func WithStore(store ports.LedgerStore, table string) Option {
	return func(g *Guard) {
		g.store = store
		g.table = table
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithAlertHook registers a callback fired once per emitted advisory,
// typically a metrics counter.
func WithAlertHook(hook func()) Option {
	return func(g *Guard) {
		g.onAlert = hook
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func New(window Window, threshold int, opts ...Option) (*Guard, error) {
	if window == nil {
		return nil, errors.New("rate window is required")
	}
	if threshold <= 0 {
		return nil, errors.New("rate threshold must be positive")
	}

	g := &Guard{
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Account registers one call under the given context label. Window or store
// failures are logged and swallowed; the guarded call always proceeds.
func (g *Guard) Account(ctx context.Context, label string) {
	now := g.now()
	count, err := g.window.Add(ctx, now)
	if err != nil {
		if g.logger != nil {
			g.logger.WarnContext(ctx, "rate window unavailable", "label", label, "error", err)
		}
		return
	}
	if count <= g.threshold {
		return
	}

	if g.logger != nil {
		g.logger.WarnContext(ctx, "request rate above threshold",
			"label", label,
			"count", count,
			"threshold", g.threshold,
		)
	}
	if g.onAlert != nil {
		g.onAlert()
	}
	if g.store == nil {
		return
	}

	alert := models.Record{
		PartitionKey: alertPartition,
		SortKey:      models.Timestamp(now),
		Type:         models.TypeRateAlert,
		Event:        label,
		CreatedAt:    models.Timestamp(now),
		Payload: map[string]any{
			"count":     count,
			"threshold": g.threshold,
		},
	}
	if err := g.store.Put(ctx, g.table, alert); err != nil && g.logger != nil {
		g.logger.WarnContext(ctx, "failed to persist rate alert", "label", label, "error", err)
	}
}
