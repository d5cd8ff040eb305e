package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hogar/internal/amqp"
	"hogar/internal/auth"
	"hogar/internal/config"
	"hogar/internal/extract"
	apphttp "hogar/internal/http"
	"hogar/internal/services"
	"hogar/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	extractor, err := extract.NewVisionExtractor(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Vision extractor", "error", err)
		os.Exit(1)
	}

	// AMQP is optional: without it invoices stay local and the worker idles.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, invoice export disabled", "error", err)
		} else {
			defer amqpClient.Close()
		}
	}

	ingestSvc := services.NewIngestService(extractor, repo, amqpClient, cfg.ExtractTimeout, cfg.IngestConcurrency)
	packSvc := services.NewPackService(repo)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		Ingest:        ingestSvc,
		Packs:         packSvc,
		Storage:       repo,
		Tokens:        tokens,
		AdminUsername: cfg.AdminUsername,
		SessionTTL:    cfg.SessionTTL,
		MaxUploadSize: cfg.MaxDocumentBytes,
	})

	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting hogar server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
