// Package app wires configuration into the repositories, storage and services
// shared by the HTTP server and the weekctl tool.
package app

import (
	"alcyxob/workout-tracker/internal/config"
	"alcyxob/workout-tracker/internal/metrics"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/repository"
	"alcyxob/workout-tracker/internal/repository/memory"
	"alcyxob/workout-tracker/internal/repository/mongo"
	"alcyxob/workout-tracker/internal/service"
	"alcyxob/workout-tracker/internal/storage"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// App holds the wired components.
type App struct {
	Config   config.Config
	Service  service.WeekService
	Metrics  *metrics.Metrics
	Policy   reconcile.Policy
	Location *time.Location
	Logger   zerolog.Logger

	closers []func() error
}

// NewLogger builds the process logger from the log section.
// Format "console" writes human-readable lines to w.
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.Format == "console" || os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// New connects the configured backends and builds the week service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(), Policy: cfg.Reconcile.Policy()}

	loc, err := cfg.Reconcile.Location()
	if err != nil {
		return nil, fmt.Errorf("reconcile.timezone: %w", err)
	}
	a.Location = loc

	var (
		weeklyRepo  repository.WeeklyRepository
		sessionRepo repository.SessionRepository
	)
	switch cfg.Storage.Mode {
	case config.StorageMemory:
		logger.Warn().Msg("memory storage mode: data is lost on exit")
		weeklyRepo = memory.NewWeeklyRepository()
		sessionRepo = memory.NewSessionRepository()
	default:
		client, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			return nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		a.closers = append(a.closers, func() error { return mongo.DisconnectDB(client) })
		db := client.Database(cfg.Database.Name)
		logger.Info().Str("database", cfg.Database.Name).Msg("database connection established")

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		mongo.EnsureIndexes(indexCtx, db, logger)
		cancel()

		weeklyRepo = mongo.NewMongoWeeklyRepository(db)
		sessionRepo = mongo.NewMongoSessionRepository(db)
	}

	var snapshots storage.SnapshotStore
	switch {
	case cfg.S3.SnapshotsEnabled():
		if snapshots, err = storage.NewS3Storage(ctx, cfg.S3, logger); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initialize snapshot storage: %w", err)
		}
	case cfg.Storage.Mode == config.StorageMemory:
		snapshots = storage.NewMemoryStorage()
	default:
		logger.Warn().Msg("s3.bucket_name is empty: repairs will not be snapshotted")
	}

	engine := reconcile.NewEngine(a.Policy, loc)
	a.Service = service.NewWeekService(
		weeklyRepo,
		sessionRepo,
		snapshots,
		engine,
		cfg.Defaults.Settings(),
		a.Metrics,
		logger,
	)

	logger.Info().
		Str("storage_mode", cfg.Storage.Mode).
		Bool("snapshots", snapshots != nil).
		Dur("burst_window", a.Policy.BurstWindow).
		Bool("collapse_supersets", a.Policy.CollapseSupersets).
		Str("timezone", loc.String()).
		Msg("week service ready")
	return a, nil
}

// Close releases backend connections in reverse order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
