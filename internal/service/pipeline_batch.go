package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledgerscan/internal/domain"
)

// BatchResult summarizes a batch reprocess.
type BatchResult struct {
	Selected  int               `json:"selected"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ReprocessBatch re-runs up to limit documents in the given status with at
// most concurrency runs in flight. Per-document errors are collected; only
// a listing failure or cancellation aborts the batch.
func (s *PipelineService) ReprocessBatch(ctx context.Context, status domain.PipelineStatus, limit, concurrency int) (*BatchResult, error) {
	if limit <= 0 {
		limit = 100
	}
	if concurrency < 1 {
		concurrency = 1
	}
	docs, _, err := s.docs.List(ctx, domain.DocumentFilter{Status: &status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("pipeline.ReprocessBatch: %w", err)
	}

	res := &BatchResult{Selected: len(docs), Errors: make(map[string]string)}
	var mu sync.Mutex
	record := func(id uuid.UUID, pr *ProcessResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			res.Errors[id.String()] = err.Error()
		case pr.Status == domain.StatusCompleted:
			res.Completed++
		default:
			res.Failed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range docs {
		id := docs[i].ID
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			pr, err := s.Process(gctx, id, ProcessOptions{Reprocess: true})
			if errors.Is(err, context.Canceled) {
				return err
			}
			if err != nil {
				slog.WarnContext(gctx, "pipeline.ReprocessBatch: document not reprocessed", "document_id", id, "error", err)
			}
			record(id, pr, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("pipeline.ReprocessBatch: %w", err)
	}

	slog.InfoContext(ctx, "pipeline.ReprocessBatch: done",
		"status", status, "selected", res.Selected, "completed", res.Completed, "failed", res.Failed, "errors", len(res.Errors))
	return res, nil
}
