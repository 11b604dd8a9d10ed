// Package cli provides common initialization for the doordashboard,
// dashboard-worker and dashctl binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"doordashboard/internal/amqp"
	"doordashboard/internal/cache"
	"doordashboard/internal/config"
	"doordashboard/internal/log"
	"doordashboard/internal/normalize"
	"doordashboard/internal/observability"
	"doordashboard/internal/services"
	"doordashboard/internal/sheets"
	gsheet "doordashboard/internal/sheets/google"
	"doordashboard/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// validates it. The process exits on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitUsers opens the user database, running migrations.
// The process exits on failure.
func InitUsers(logger *log.Logger, dbPath string) *storage.UserRepository {
	users, err := storage.NewUserRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize user database", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return users
}

// ConnectAMQP dials the broker when AMQP_URL is set. It returns nil, nil
// when events are disabled.
func ConnectAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
}

// WeeklyExporter returns the Google Sheets exporter when a spreadsheet is
// configured, or nil.
func WeeklyExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.WeeklyExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		WeeklySheet:     cfg.GoogleWeeklySheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Core is the session store with the snapshot controller and the services
// built on it. Every binary goes through it so they agree on the data path.
type Core struct {
	Store     *storage.FileStore
	Snapshots *cache.Controller
	Dashboard *services.DashboardService
	Sessions  *services.SessionService
	Repair    *services.RepairService
}

// NewCore wires the data path. client may be nil, in which case mutations
// publish no events.
func NewCore(cfg *config.Config, logger *log.Logger, client *amqp.Client) *Core {
	var publisher services.EventPublisher
	if client != nil {
		publisher = client
	}

	store := storage.NewFileStore(cfg.DataFile, cfg.WriteLockTimeout, logger)
	normalizer := normalize.New(normalize.Multi(
		normalize.NewLogSink(logger),
		observability.NormalizationSink(),
	))
	snapshots := cache.NewController(store, normalizer, cache.Options{
		ReloadTimeout: cfg.ReloadTimeout,
		Logger:        logger,
		Observer:      observability.ObserveReload,
	})

	return &Core{
		Store:     store,
		Snapshots: snapshots,
		Dashboard: services.NewDashboardService(snapshots, cfg.DataFile, cfg.ViewCacheTTL, logger),
		Sessions:  services.NewSessionService(store, snapshots, publisher, logger),
		Repair:    services.NewRepairService(store, snapshots, publisher, logger),
	}
}

// StoreCheck is the readiness probe for the session store. A file that does
// not exist yet is fine; one that exists but cannot be read is not.
func (c *Core) StoreCheck(ctx context.Context) error {
	snap, err := c.Snapshots.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Marker.Exists {
		return snap.LoadErr
	}
	return nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed when cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
