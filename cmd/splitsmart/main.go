package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"splitsmart/internal/auth"
	"splitsmart/internal/cli"
	apphttp "splitsmart/internal/http"
	"splitsmart/internal/log"
	"splitsmart/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	if cfg.UsesDevSecret() {
		logger.Warn("JWT_SECRET not set; using the development secret")
	}

	infra, err := cli.OpenInfrastructure(context.Background(), cfg, logger, false)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	settlements := services.NewSettlementService(infra.Store, infra.Plans.Cache, logger)
	svc := apphttp.Services{
		Accounts:    services.NewAccountService(infra.Store, tokens, logger),
		Groups:      services.NewGroupService(infra.Store, logger),
		Expenses:    services.NewExpenseService(infra.Store, infra.EventPublisher(), settlements, logger),
		Settlements: settlements,
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              infra.Store,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting splitsmart server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"plan_cache", infra.Plans.Kind,
			"events", infra.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	if err := infra.Close(); err != nil {
		logger.Error("Failed to release resources", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
