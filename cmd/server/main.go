package main

import (
	"alcyxob/workout-tracker/internal/api"
	"alcyxob/workout-tracker/internal/app"
	"alcyxob/workout-tracker/internal/config"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// @title Workout Tracker API
// @version 1.0
// @description Weekly workout grid, session log and repair operations.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	configPath := pflag.StringP("config", "c", ".", "config directory or YAML file")
	pflag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)
	log.Logger = logger
	logger.Info().Str("address", cfg.Server.Address).Msg("starting workout tracker server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Backends and services ---
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not initialize application")
	}
	defer func() {
		logger.Info().Msg("closing backends")
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close backends")
		}
	}()

	// --- Initialize Gin Engine ---
	if os.Getenv("ENVIRONMENT") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestIDMiddleware(), api.LoggerMiddleware(logger))

	opts := api.RouterOptions{Policy: a.Policy, Location: a.Location}
	if cfg.Metrics.Enabled {
		opts.Metrics = a.Metrics
		opts.MetricsPath = cfg.Metrics.Path
	}
	api.SetupRoutes(router, a.Service, opts)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen and serve")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exiting")
}
