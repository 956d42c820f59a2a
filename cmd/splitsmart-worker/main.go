package main

import (
	"context"
	"errors"
	"os"
	"time"

	"splitsmart/internal/amqp"
	"splitsmart/internal/cli"
	"splitsmart/internal/log"
	"splitsmart/internal/services"
	"splitsmart/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting splitsmart-worker")

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend selected; the worker cannot see the API's data")
	}

	infra, err := cli.OpenInfrastructure(context.Background(), cfg, logger, false)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer infra.Close()

	exporter, err := cli.NewExporter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		os.Exit(1)
	}

	settlements := services.NewSettlementService(infra.Store, infra.Plans.Cache, logger)
	w := worker.NewSettlementWorker(infra.Store, settlements, exporter, cfg.WorkerConcurrency, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, w.HandleExpenseRecorded); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic refresh only", "interval", cfg.RefreshInterval)
	}

	go w.Run(ctx, cfg.RefreshInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
