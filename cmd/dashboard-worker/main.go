package main

import (
	"context"
	"os"
	"time"

	"doordashboard/internal/cli"
	"doordashboard/internal/log"
	"doordashboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	logger.Info("Starting dashboard-worker", log.FieldOperation, log.OpStartup)

	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	var consumer worker.EventConsumer
	if amqpClient != nil {
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("Running on the precompute interval only")
	}

	exporter, err := cli.WeeklyExporter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	core := cli.NewCore(cfg, logger, nil)
	precomputer := worker.NewPrecomputer(core.Dashboard, core.Snapshots, cfg.CacheFile, exporter, logger)
	runner := worker.NewRunner(precomputer, consumer, worker.RunnerConfig{Interval: cfg.PrecomputeInterval}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := runner.Stop(ctx); err != nil {
			logger.Error("Precompute runner stop error", log.FieldError, err)
		}
	})

	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start precompute runner", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("dashboard-worker stopped")
}
