package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/amqp"
	"khata/internal/auth"
	"khata/internal/blob"
	"khata/internal/blob/drive"
	"khata/internal/blob/local"
	"khata/internal/config"
	apphttp "khata/internal/http"
	applog "khata/internal/log"
	"khata/internal/services"
	"khata/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	applog.Setup()
	logger := applog.For(applog.ComponentApp)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Choose the bill image backend.
	var blobs blob.Store
	switch cfg.BlobBackend {
	case "drive":
		store, err := drive.NewFromEnv(context.Background(), cfg.DriveFolderID)
		if err != nil {
			logger.Error("Failed to initialize Drive blob store", applog.FieldError, err)
			os.Exit(1)
		}
		blobs = store
		logger.Info("Initialized Drive blob backend", "folder_id", cfg.DriveFolderID)
	default:
		store, err := local.NewStore(cfg.BlobDataDir, cfg.PublicBaseURL)
		if err != nil {
			logger.Error("Failed to initialize local blob store",
				applog.FieldError, err, "dir", cfg.BlobDataDir)
			os.Exit(1)
		}
		blobs = store
		logger.Info("Initialized local blob backend", "dir", cfg.BlobDataDir)
	}

	// AMQP is optional: without a broker the API runs local-only and the
	// worker's pending sweep picks exports up later.
	var publisher services.RecordEventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without event publishing",
				applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	gate := auth.NewGate(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret, cfg.JWTExpiry)
	svc := services.NewRecordService(repo, blobs, publisher)

	opts := apphttp.Options{}
	if cfg.BlobBackend == "local" {
		opts.UploadsDir = cfg.BlobDataDir
	}
	srv := apphttp.NewServer(":"+cfg.Port, gate, svc, opts)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

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
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting khata server", "port", cfg.Port, "blob_backend", cfg.BlobBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
