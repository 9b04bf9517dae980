package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

// DocumentProcessor runs the pipeline for a document that is already leased.
type DocumentProcessor interface {
	ProcessClaimed(ctx context.Context, doc *domain.Document, owner string, opts ProcessOptions) (*ProcessResult, error)
}

// WorkerConfig holds settings for the pipeline worker.
type WorkerConfig struct {
	WorkerID     string
	PollInterval time.Duration
	Concurrency  int
	LeaseTTL     time.Duration
	// RunTimeout bounds one document run. Zero means four lease periods.
	RunTimeout time.Duration
}

// PipelineWorker polls for unfinished documents and processes them. Documents
// whose lease expired mid-run are picked up again and resume from the log.
type PipelineWorker struct {
	docRepo   port.DocumentRepository
	processor DocumentProcessor
	cfg       WorkerConfig
	wg        sync.WaitGroup
}

// NewPipelineWorker creates a new PipelineWorker.
func NewPipelineWorker(docRepo port.DocumentRepository, processor DocumentProcessor, cfg WorkerConfig) *PipelineWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 4 * cfg.LeaseTTL
	}
	return &PipelineWorker{
		docRepo:   docRepo,
		processor: processor,
		cfg:       cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight runs have finished.
func (w *PipelineWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	slog.Info("pipelineWorker: started",
		"worker_id", w.cfg.WorkerID, "poll", w.cfg.PollInterval, "concurrency", w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipelineWorker: shutting down, waiting for in-flight runs")
			w.wg.Wait()
			slog.Info("pipelineWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			docs, err := w.docRepo.ClaimNext(ctx, w.cfg.WorkerID, available, w.cfg.LeaseTTL)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				slog.Error("pipelineWorker: ClaimNext failed", "error", err)
				continue
			}

			for i := range docs {
				doc := docs[i]

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()

					// Fresh context so in-flight runs complete during shutdown.
					runCtx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
					defer cancel()

					slog.Info("pipelineWorker: dispatching document",
						"document_id", doc.ID, "status", doc.Status, "attempt", doc.Attempts)
					res, err := w.processor.ProcessClaimed(runCtx, &doc, w.cfg.WorkerID, ProcessOptions{})
					if err != nil {
						slog.Error("pipelineWorker: run failed", "document_id", doc.ID, "error", err)
						return
					}
					slog.Info("pipelineWorker: run finished", "document_id", doc.ID, "status", res.Status)
				}()
			}
		}
	}
}
