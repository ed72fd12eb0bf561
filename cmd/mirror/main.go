package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/mirror/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/mirror/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/mirror/internal/adapter/driving/http"
	"github.com/ericfisherdev/mirror/internal/application"
	"github.com/ericfisherdev/mirror/internal/config"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"profile", cfg.Profile,
		"req_threshold", cfg.RequirementThreshold,
		"tmp_threshold", cfg.TemporalThreshold,
		"auth", cfg.AuthEnabled(),
		"commit_statuses", cfg.PublishesCommitStatuses(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", version)

	// 5. Wire adapters.
	projectStore := sqliteadapter.NewProjectRepo(db)
	runStore := sqliteadapter.NewRunRepo(db)
	decisionStore := sqliteadapter.NewDecisionRepo(db)
	requirementStore := sqliteadapter.NewRequirementRepo(db)
	catalogStore := sqliteadapter.NewCatalogRepo(db)

	// 6. Create commit status publisher (nil disables publishing).
	var publisher driven.CommitStatusPublisher
	if cfg.PublishesCommitStatuses() {
		publisher = githubadapter.NewClient(cfg.GitHubToken, slog.Default())
		slog.Info("github commit status publishing enabled")
	}

	// 7. Create application services.
	gate := application.NewCoverageGate(cfg.GateThresholds())
	ingestSvc := application.NewIngestService(
		projectStore,
		runStore,
		requirementStore,
		decisionStore,
		publisher,
		gate,
		cfg.DashboardBaseURL,
		slog.Default(),
	)
	querySvc := application.NewQueryService(runStore, decisionStore, requirementStore, catalogStore, gate)
	catalogSvc := application.NewCatalogService(projectStore, catalogStore)

	// 8. Create HTTP handler with routes and middleware.
	apiHandler := httphandler.NewHandler(ingestSvc, querySvc, catalogSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, cfg.JWTSecret, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("mirror started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 10. Graceful shutdown with 10s timeout for in-flight submissions.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
