package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marquee/internal/clients/metadata"
	"marquee/internal/clients/notifications"
	"marquee/internal/config"
	"marquee/internal/core"
	"marquee/internal/handlers"
	"marquee/internal/utils"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal("Invalid config:", err)
	}

	// Initialize logger to write to both file and console
	if err := os.MkdirAll(cfg.App.DataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data path: %v", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.App.DataPath, "marquee.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	logger := utils.NewLogger(cfg.App.Debug, multiWriter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder := config.NewHolder(cfg, *configPath, logger)
	if err := holder.Watch(ctx); err != nil {
		logger.Warn().Err(err).Msg("config hot reload disabled")
	}

	tmdb := metadata.NewTMDBClient(cfg.TMDB, logger)
	if !tmdb.Configured() {
		logger.Warn().Msg("TMDB api key not set, rows will stay empty")
	}
	provider := metadata.NewProvider(tmdb, cfg.TMDB, logger)

	var notifiers []notifications.Notifier
	if pb := cfg.Notifications.Pushbullet; pb.Enabled {
		client := notifications.NewPushbulletClient(pb.APIKey, logger)
		if err := client.Test(); err != nil {
			logger.Warn().Err(err).Msg("pushbullet check failed, notifications may not arrive")
		}
		notifiers = append(notifiers, client)
	}

	// Create manager
	manager := core.NewManager(holder, provider, tmdb.Configured(), logger, notifiers...)
	if err := manager.StartScheduler(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	// Start web server
	server := handlers.NewServer(holder, manager, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	logger.Info().Int("port", cfg.App.Port).Msg("marquee started")

	// Wait for interrupt
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	manager.Stop()
}
