package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"doordashboard/internal/auth"
	"doordashboard/internal/cache"
	"doordashboard/internal/cli"
	apphttp "doordashboard/internal/http"
	"doordashboard/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	users := cli.InitUsers(logger, cfg.SQLiteDBPath)
	defer users.Close()

	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		// Events are best-effort; the dashboard works without a broker.
		logger.Warn("AMQP unavailable, session events disabled", log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		amqpClient = nil
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	core := cli.NewCore(cfg, logger, amqpClient)

	memos := cache.NewManager(logger)
	memos.Register(core.Dashboard.Memo())
	memos.StartCleanup(time.Minute)

	tokens := auth.TokenConfig{
		Secret: cfg.JWTSecretKey,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTokenExpires,
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Dashboard: core.Dashboard,
		Sessions:  core.Sessions,
		Auth:      auth.NewService(users, tokens, logger),
		Tokens:    tokens,
		Checks: map[string]apphttp.Check{
			"session_store": core.StoreCheck,
			"users":         users.Ping,
		},
		Logger: logger,
	}, apphttp.Options{
		ClientBuild:        cfg.ClientBuild,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		memos.Stop()
	})

	logger.Info("Starting doordashboard server",
		"addr", cfg.Addr(),
		log.FieldDataFile, cfg.DataFile,
		"events", amqpClient != nil,
		"client_build", cfg.ClientBuild,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
