package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-provision/cmd/provisionctl/cli"
	"github.com/odyssey-erp/odyssey-provision/internal/app"
	"github.com/odyssey-erp/odyssey-provision/internal/auth"
	"github.com/odyssey-erp/odyssey-provision/internal/platform/cache"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping provisionctl")
		return
	}
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		return cli.NewAdminCLI(nil, nil, nil, nil).Run(ctx, nil)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitFailure
	}
	logger := app.NewLogger(cfg)

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		logger.Error("open stores", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer stores.Close()

	deps := app.ServiceDeps{Logger: logger}
	if cfg.BootstrapLockEnabled && os.Args[1] == "bootstrap" {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			return cli.ExitFailure
		}
		defer func() { _ = redisClient.Close() }()
		deps.Locker = cache.NewLocker(redisClient)
	}

	tokens, err := auth.NewTokenService(cfg.AuthTokenSecret, cfg.AuthTokenIssuer, cfg.AuthTokenTTL)
	if err != nil {
		logger.Error("token service", slog.Any("error", err))
		return cli.ExitFailure
	}

	service := app.NewProvisioningService(cfg, stores, deps)
	admin := cli.NewAdminCLI(service, auth.NewService(stores.Identities, tokens), os.Stdout, os.Stderr)
	return admin.Run(ctx, os.Args[1:])
}
