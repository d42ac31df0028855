package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openhouselabs/dealdesk/service/config"
	"github.com/openhouselabs/dealdesk/service/db"
	"github.com/openhouselabs/dealdesk/service/delivery"
	"github.com/openhouselabs/dealdesk/service/events"
	"github.com/openhouselabs/dealdesk/service/metrics"
	"github.com/openhouselabs/dealdesk/service/render"
	"github.com/openhouselabs/dealdesk/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Submission archive is optional: without a database the pipeline still
	// renders and delivers, it just cannot answer status lookups.
	var store *db.Store
	if cfg.ArchiveEnabled() {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		store = db.NewStore(dbPool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, submission archive disabled")
	}

	// Delivery event publishing is optional for the same reason.
	var publisher events.Publisher
	if cfg.EventsEnabled() {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		publisher = p
	} else {
		logger.Warn("NATS_URL not set, delivery events disabled")
	}

	sender, err := delivery.NewSMTPSender(cfg.SMTP)
	if err != nil {
		logger.Error("failed to initialize SMTP sender", "error", err)
		os.Exit(1)
	}
	email := delivery.NewEmailDestination(sender, cfg.SMTP.From, cfg.SMTP.To, logger)

	var storage, recordUpdate, fallback delivery.Destination
	if cfg.StorageUploadURL != "" {
		storage = delivery.NewStorageDestination(cfg.StorageUploadURL, nil, logger)
		recordUpdate = delivery.NewRecordUpdateDestination(cfg.RecordUpdateURL, cfg.Airtable.AttachmentField, nil, logger)
	}
	if cfg.Airtable.APIKey != "" {
		fallback = delivery.NewAirtableFallback(
			cfg.Airtable.APIKey,
			cfg.Airtable.BaseID,
			cfg.Airtable.TableName,
			cfg.Airtable.AttachmentField,
			logger,
		)
	}

	orchestrator := delivery.NewOrchestrator(email, storage, recordUpdate, fallback, m, logger)

	pipeline := &server.Pipeline{
		Loader:       render.NewTemplateLoader(cfg.TemplateURL, cfg.TemplateFallbackPaths, nil, logger).WithMetrics(m),
		Renderer:     render.NewRenderer(logger),
		Orchestrator: orchestrator,
		Store:        store,
		Publisher:    publisher,
		Metrics:      m,
		BaseURL:      cfg.PublicBaseURL,
	}

	httpServer := server.New(cfg.ServerAddr, cfg, pipeline, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"template_url", cfg.TemplateURL,
		"archive_enabled", cfg.ArchiveEnabled(),
		"events_enabled", cfg.EventsEnabled(),
		"storage_upload", cfg.StorageUploadURL != "",
		"airtable_fallback", cfg.Airtable.APIKey != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
