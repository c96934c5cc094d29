package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	dockeradapter "github.com/aegislabs/aegis/internal/adapter/docker"
	"github.com/aegislabs/aegis/internal/adapter/fsm"
	handler "github.com/aegislabs/aegis/internal/adapter/http"
	oteladapter "github.com/aegislabs/aegis/internal/adapter/otel"
	riveradapter "github.com/aegislabs/aegis/internal/adapter/river"
	"github.com/aegislabs/aegis/internal/adapter/sqlite"
	"github.com/aegislabs/aegis/internal/app"
)

// runnerFunc adapts the late-bound orchestrator to the river adapter's
// Runner interface: the river client must exist before the orchestrator,
// and the orchestrator schedules through the river client.
type runnerFunc func(ctx context.Context, tenantID string) error

func (f runnerFunc) Run(ctx context.Context, tenantID string) error { return f(ctx, tenantID) }

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "aegis.db")
	tenantImage := envOrDefault("TENANT_IMAGE", "ghcr.io/aegislabs/agent-runtime:latest")

	ctx := context.Background()

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(dbPath)
	if err != nil {
		return err
	}

	repoSQL, err := sqlite.NewFromDB(db)
	if err != nil {
		return err
	}
	defer repoSQL.Close()

	repo := oteladapter.NewTracingRepository(repoSQL)
	store := oteladapter.NewTracingStatusStore(sqlite.NewStatusStore(db))
	validator := fsm.New()

	executor, err := dockeradapter.NewExecutor(dockeradapter.ExecutorConfig{Image: tenantImage})
	if err != nil {
		return err
	}

	// River and the orchestrator reference each other: the client runs
	// the orchestrator's loop, the orchestrator enqueues through the
	// client. Late-bind the orchestrator through runnerFunc.
	var orch *app.Orchestrator
	riverClient, err := riveradapter.Setup(ctx, db, runnerFunc(func(ctx context.Context, tenantID string) error {
		return orch.Run(ctx, tenantID)
	}))
	if err != nil {
		return err
	}

	scheduler := riveradapter.NewScheduler(riverClient)
	publisher := oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient))

	// --- Application ---
	orch = app.NewOrchestrator(store, repo, executor, scheduler, publisher, validator,
		orchestratorConfigFromEnv(), logger)
	svc := app.NewTenantService(repo, orch, publisher, validator)

	if err := riverClient.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Warn("river shutdown", "error", err)
		}
	}()

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("aegis", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("aegis", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("aegis console listening", "port", port)
		logger.Info("API docs", "url", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}

// orchestratorConfigFromEnv reads the run loop knobs, leaving zero
// values for anything unset or malformed so the defaults apply.
func orchestratorConfigFromEnv() app.OrchestratorConfig {
	var cfg app.OrchestratorConfig
	if v := os.Getenv("PROVISION_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = n
		}
	}
	if v := os.Getenv("PROVISION_ATTEMPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AttemptTimeout = d
		}
	}
	if v := os.Getenv("PROVISION_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryBackoff = d
		}
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
