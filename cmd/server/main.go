package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"attest/internal/jwttoken"
	"attest/internal/platform/config"
	dynamoplatform "attest/internal/platform/dynamo"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/logger"
	"attest/internal/platform/metrics"
	redisplatform "attest/internal/platform/redis"
	"attest/internal/verification/handler"
	"attest/internal/verification/ports"
	"attest/internal/verification/provider"
	"attest/internal/verification/rateguard"
	"attest/internal/verification/service"
	dynamostore "attest/internal/verification/store/dynamo"
	memorystore "attest/internal/verification/store/memory"
	postgresstore "attest/internal/verification/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build ledger store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	m := metrics.New()

	guard, err := buildGuard(cfg, log, m, store)
	if err != nil {
		return fmt.Errorf("build rate guard: %w", err)
	}

	providerClient := provider.NewClient(provider.Config{
		BaseURL:   cfg.Provider.BaseURL,
		ClientID:  cfg.Provider.ClientID,
		SecretKey: cfg.Provider.SecretKey,
		Timeout:   cfg.Provider.Timeout,
	}, provider.WithLogger(log))

	svc, err := service.New(store, providerClient, guard, service.Config{
		Table:           cfg.Verification.TableName,
		ReferenceIndex:  cfg.Verification.ReferenceIndex,
		SharedSecret:    cfg.Provider.SecretKey,
		CallbackURL:     cfg.Provider.CallbackURL,
		RedirectURL:     cfg.Provider.RedirectURL,
		DefaultLanguage: cfg.Verification.DefaultLanguage,
		Languages:       cfg.Verification.Languages,
	},
		service.WithLogger(log),
		service.WithErrorSink(&ports.SlogSink{Logger: log}),
		service.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("build verification service: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "attest", "attest-api")

	router := chi.NewRouter()
	handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService)).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting attest server", "addr", cfg.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects the ledger backend. The memory store serves local
// development; dynamo and postgres are the deployable options.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.LedgerStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		log.Warn("using in-memory ledger store; state is lost on restart")
		return memorystore.New(), nil, nil

	case "dynamo":
		client, err := dynamoplatform.New(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		return dynamostore.New(client), nil, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgresstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildGuard prefers a Redis-backed sliding window when Redis is configured,
// so the advisory threshold counts calls across replicas.
func buildGuard(cfg config.Config, log *slog.Logger, m *metrics.Metrics, store ports.LedgerStore) (*rateguard.Guard, error) {
	var window rateguard.Window = rateguard.NewMemoryWindow(rateguard.DefaultWindow)

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		window = rateguard.NewRedisWindow(redisClient.Client, "start_session", rateguard.DefaultWindow)
		log.Info("rate guard using redis window")
	}

	return rateguard.New(window, cfg.Verification.RatePerMinute,
		rateguard.WithLogger(log),
		rateguard.WithStore(store, cfg.Verification.TableName),
		rateguard.WithAlertHook(m.RecordRateAlert),
	)
}
