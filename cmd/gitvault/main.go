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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/gitvault/internal/adapter/driven/github"
	gitlabadapter "github.com/ericfisherdev/gitvault/internal/adapter/driven/gitlab"
	sqliteadapter "github.com/ericfisherdev/gitvault/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/gitvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/gitvault/internal/application"
	"github.com/ericfisherdev/gitvault/internal/cipher"
	"github.com/ericfisherdev/gitvault/internal/config"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing secrets).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"provider_timeout", cfg.ProviderTimeout,
		"analysis_queue", cfg.AnalysisQueue,
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
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Cipher keyed by the global secret.
	c, err := cipher.New(cfg.SecretKey)
	if err != nil {
		return err
	}

	// 6. Provider registry. One shared transport; the timeout bounds every call.
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	ghFactory, err := githubadapter.NewFactory(httpClient, cfg.GitHubBaseURL)
	if err != nil {
		return err
	}
	glFactory, err := gitlabadapter.NewFactory(httpClient, cfg.GitLabBaseURL)
	if err != nil {
		return err
	}
	registry := application.NewRegistry(map[model.ProviderTag]application.ProviderComponents{
		model.ProviderGitHub: {Factory: ghFactory, Normalizer: githubadapter.Normalizer{}},
		model.ProviderGitLab: {Factory: glFactory, Normalizer: gitlabadapter.Normalizer{}},
	})
	logger.Info("providers registered", "providers", registry.Providers())

	// 7. Metrics.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := application.NewMetrics(promRegistry)

	// 8. Services.
	vault := application.NewVaultService(
		sqliteadapter.NewUserRepo(db),
		sqliteadapter.NewCredentialRepo(db),
		c,
		registry,
		metrics,
	)
	ingestion := application.NewIngestionService(
		vault,
		registry,
		sqliteadapter.NewRepoRepo(db),
		sqliteadapter.NewJobRepo(db),
		metrics,
		cfg.AnalysisQueue,
		cfg.AnalysisPriority,
	)

	// 9. HTTP.
	authn, err := httphandler.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	h := httphandler.NewHandler(vault, ingestion, db, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(h, authn, promRegistry, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
