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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-provision/internal/app"
	"github.com/odyssey-erp/odyssey-provision/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-provision/internal/audit/http"
	"github.com/odyssey-erp/odyssey-provision/internal/auth"
	"github.com/odyssey-erp/odyssey-provision/internal/observability"
	"github.com/odyssey-erp/odyssey-provision/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
	"github.com/odyssey-erp/odyssey-provision/jobs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("provisiond", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	deps := app.ServiceDeps{Metrics: metrics, Logger: logger}

	if cfg.BootstrapLockEnabled {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		deps.Locker = cache.NewLocker(redisClient)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	if cfg.AuditRetryEnabled {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			return err
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		deps.Retrier = jobClient
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokenService(cfg.AuthTokenSecret, cfg.AuthTokenIssuer, cfg.AuthTokenTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(stores.Identities, tokens)
	service := app.NewProvisioningService(cfg, stores, deps)
	auditService := audit.NewService(stores.Audit)

	if !cfg.BootstrapEnabled() {
		logger.Info("bootstrap secret not configured, initial administrator path closed")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Tokens:              tokens,
		AuthHandler:         auth.NewHandler(logger, authService),
		ProvisioningHandler: provisioning.NewHandler(logger, service, cfg.BootstrapRateLimit),
		AuditHandler:        audithttp.NewHandler(logger, auditService, audit.NewExporter()),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
