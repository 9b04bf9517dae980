package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "ledgerscan/docs"
	"ledgerscan/internal/app"
	"ledgerscan/internal/config"
	"ledgerscan/internal/handler"
	"ledgerscan/internal/logging"
	"ledgerscan/internal/repository/postgres"
	"ledgerscan/internal/router"
	"ledgerscan/internal/scoring"
	"ledgerscan/internal/service"
)

// @title ledgerscan API
// @version 1.0
// @description Document understanding pipeline: upload statements, invoices and receipts, extract scored fields, export results.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a JWT.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	fieldRepo := postgres.NewFieldRepo(db)
	logRepo := postgres.NewProcessingLogRepo(db)
	storedFileRepo := postgres.NewStoredFileRepo(db)

	// Initialize storage
	store, err := app.OpenStorage(ctx, &cfg.Storage, storedFileRepo)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Initialize pipeline
	extractor, err := app.NewProvider(&cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}
	scorer, err := scoring.New(cfg.ScoringConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize scorer: %w", err)
	}
	normOpts, err := cfg.NormalizeOptions()
	if err != nil {
		return fmt.Errorf("failed to read normalization options: %w", err)
	}
	pipeline := service.NewPipelineService(docRepo, fieldRepo, logRepo, store.Gateway, extractor, scorer, cfg.Pipeline, normOpts)

	// Initialize services
	uploadSvc := service.NewUploadService(docRepo, store.Gateway, pipeline, service.UploadConfig{
		MaxBytes:        cfg.Upload.MaxBytes(),
		ProcessOnUpload: cfg.Pipeline.ProcessOnUpload,
		Concurrency:     cfg.Pipeline.Concurrency,
		RunTimeout:      4 * cfg.Pipeline.LeaseTTL,
	})
	exportSvc := service.NewExportService(docRepo, fieldRepo, logRepo)

	// Initialize handlers
	docH := handler.NewDocumentHandler(uploadSvc, pipeline, exportSvc, cfg.Upload.MaxBytes())
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg, service.NewTokenService(cfg.JWT), docH, healthH)
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the pipeline worker
	worker := service.NewPipelineWorker(docRepo, pipeline, service.WorkerConfig{
		WorkerID:     cfg.Pipeline.WorkerID,
		PollInterval: cfg.Pipeline.PollInterval,
		Concurrency:  cfg.Pipeline.Concurrency,
		LeaseTTL:     cfg.Pipeline.LeaseTTL,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-workerDone
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	uploadSvc.Wait()
	<-workerDone
	slog.Info("shutdown complete")
	return nil
}
