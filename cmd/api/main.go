package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/handlers"
	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/assist"
	"github.com/dvloznov/bookkeeper/internal/bootstrap"
	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env", "", "Path to a .env file (default: ./.env when present)")
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
		noAI    = flag.Bool("no-ai", false, "Disable suggestion and statement extraction endpoints")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	log := logger.Configure(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Initialize the period store and the working book
	repo, closeStore, err := bootstrap.OpenRepository(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open period store")
	}
	defer closeStore()

	book, err := bootstrap.OpenBook(ctx, repo, cfg.PeriodID, logger.Component(log, "book"))
	if err != nil {
		log.Fatal().Err(err).Str("period_id", cfg.PeriodID).Msg("Failed to open period")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(cfg.QueueWorkers),
		inmemory.WithQueueLogger(logger.Component(log, "queue")),
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var assistant *assist.Assistant
	if !*noAI {
		extractor, err := bootstrap.NewExtractor(ctx, cfg.Extraction, logger.Component(log, "extraction"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create extractor")
		}
		assistant = assist.New(book, extractor, jobQueue, jobStore, logger.Component(log, "assistant"))

		// Start job consumer in background
		log.Info().Int("workers", cfg.QueueWorkers).Msg("Starting job worker")
		if err := jobQueue.Start(logger.WithContext(workerCtx, log), assistant.Handle); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job worker")
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Chain(handlers.Routes(book, assistant, logger.Component(log, "api")), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("period_id", book.PeriodID()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
