package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/shortfall/internal/config"
	"github.com/aristath/shortfall/internal/database"
	"github.com/aristath/shortfall/internal/server"
	"github.com/aristath/shortfall/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Str("data_dir", cfg.DataDir).
		Msg("Starting shortfall server")

	// Open the returns database
	returnsDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "returns.db"),
		Name: "returns",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open returns database")
	}
	defer returnsDB.Close()

	// Create HTTP server
	srv := server.New(server.Config{
		Log:       log,
		ReturnsDB: returnsDB,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down server cleanly")
	}

	log.Info().Msg("Server stopped")
}
