package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/summit-offroad/api/internal/di"
	"github.com/summit-offroad/api/internal/handlers"
	"github.com/summit-offroad/api/internal/platform/config"
	"github.com/summit-offroad/api/internal/platform/observability"
	"github.com/summit-offroad/api/internal/platform/secrets"
)

// Populated via -ldflags at build time.
var (
	version   = "dev"
	commitSHA = ""
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher := newSecretFetcher(ctx, logger)
	if fetcher != nil {
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		}()
	}

	loadOpts := []config.Option{}
	if fetcher != nil {
		loadOpts = append(loadOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	}
	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	offerHandlers := handlers.NewOfferHandlers(container.Offers)
	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:     version,
			CommitSHA:   commitSHA,
			Environment: strings.TrimSpace(os.Getenv("ENVIRONMENT")),
			StartedAt:   startedAt,
		}),
		handlers.WithReadinessChecks(handlers.ReadinessCheck{
			Name:  "firestore",
			Check: container.FirestoreReady,
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithOfferRoutes(offerHandlers.Routes),
		handlers.WithSegmentRoutes(offerHandlers.SegmentRoutes),
		handlers.WithTrackingRoutes(handlers.NewTrackHandlers(container.Offers).Routes),
		handlers.WithInternalRoutes(handlers.NewRevenueHandlers(container.Offers).Routes),
		handlers.WithPublicMiddlewares(handlers.RateLimit(container.Limiter, container.Metrics)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("version", version),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	case <-runCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}
}

// newSecretFetcher builds the Secret Manager backed resolver when a project
// is configured. Without one, secret:// references in the environment fail
// at config load rather than silently passing through.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) *secrets.Fetcher {
	projectID := strings.TrimSpace(os.Getenv("SECRETS_PROJECT_ID"))
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID"))
	}
	if projectID == "" {
		return nil
	}
	fetcher, err := secrets.NewFetcher(ctx, projectID)
	if err != nil {
		logger.Warn("secret fetcher unavailable", zap.Error(err))
		return nil
	}
	return fetcher
}
