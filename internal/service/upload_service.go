package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/semaphore"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/storage"
)

// UploadInput is the DTO for upload requests.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
	UploadedBy  string
}

// UploadResult describes the created document.
type UploadResult struct {
	DocumentID uuid.UUID             `json:"document_id"`
	Status     domain.PipelineStatus `json:"status"`
	Hash       string                `json:"hash"`
	Path       string                `json:"storage_path"`
	Size       int64                 `json:"size_bytes"`
	PageCount  int                   `json:"page_count"`
	Duplicate  bool                  `json:"duplicate"`
}

// FileStore stores uploaded bytes with content-hash deduplication.
type FileStore interface {
	Store(ctx context.Context, data []byte, filename, contentType string) (*storage.StoreResult, error)
}

// Processor runs the pipeline for a document by id.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID, opts ProcessOptions) (*ProcessResult, error)
}

// UploadService defines the upload boundary.
type UploadService interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	// Wait blocks until processing started by uploads has finished.
	Wait()
}

// UploadConfig holds upload limits and the optional immediate kick-off.
type UploadConfig struct {
	MaxBytes        int64
	ProcessOnUpload bool
	// Concurrency caps immediate runs; uploads beyond it are left to the worker.
	Concurrency int
	RunTimeout  time.Duration
}

type uploadService struct {
	docRepo   port.DocumentRepository
	files     FileStore
	processor Processor
	cfg       UploadConfig
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
}

// NewUploadService creates a new UploadService. processor may be nil when
// processing is left entirely to the worker.
func NewUploadService(docRepo port.DocumentRepository, files FileStore, processor Processor, cfg UploadConfig) UploadService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 20 * time.Minute
	}
	return &uploadService{
		docRepo:   docRepo,
		files:     files,
		processor: processor,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

func (s *uploadService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.Filename), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, domain.ErrUnsupportedFileType
	}
	if len(input.Data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if s.cfg.MaxBytes > 0 && int64(len(input.Data)) > s.cfg.MaxBytes {
		return nil, domain.ErrFileTooLarge
	}

	// Magic-byte content type detection
	head := input.Data
	if len(head) > 512 {
		head = head[:512]
	}
	detected := http.DetectContentType(head)
	detectedType, ok := domain.AllowedContentTypes[detected]
	if !ok || detectedType != fileType {
		slog.WarnContext(ctx, "uploadService.Upload: content does not match extension",
			"filename", input.Filename, "detected", detected)
		return nil, domain.ErrUnsupportedFileType
	}
	contentType := domain.AllowedFileTypes[fileType]

	pages := 1
	if fileType == domain.FileTypePDF {
		pages = pageCount(ctx, input.Data)
	}

	stored, err := s.files.Store(ctx, input.Data, input.Filename, contentType)
	if err != nil {
		slog.ErrorContext(ctx, "uploadService.Upload: storing file", "filename", input.Filename, "error", err)
		return nil, fmt.Errorf("uploadService.Upload: %w", err)
	}

	doc := &domain.Document{
		ID:          uuid.New(),
		Filename:    input.Filename,
		ContentType: contentType,
		ContentHash: stored.Hash,
		StoragePath: stored.Path,
		SizeBytes:   stored.Size,
		PageCount:   pages,
		Status:      domain.StatusPending,
		UploadedBy:  input.UploadedBy,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("uploadService.Upload: creating document: %w", err)
	}

	slog.InfoContext(ctx, "uploadService.Upload: document created",
		"document_id", doc.ID, "filename", input.Filename, "size", stored.Size,
		"pages", pages, "duplicate", stored.Duplicate, "path", stored.Path)

	s.kickOff(doc.ID)

	return &UploadResult{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Hash:       stored.Hash,
		Path:       stored.Path,
		Size:       stored.Size,
		PageCount:  pages,
		Duplicate:  stored.Duplicate,
	}, nil
}

// kickOff starts processing in the background when a slot is free.
func (s *uploadService) kickOff(id uuid.UUID) {
	if !s.cfg.ProcessOnUpload || s.processor == nil {
		return
	}
	if !s.sem.TryAcquire(1) {
		slog.Info("uploadService.kickOff: all slots busy, leaving document to the worker", "document_id", id)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()

		res, err := s.processor.Process(ctx, id, ProcessOptions{})
		if err != nil {
			slog.Error("uploadService.kickOff: processing failed", "document_id", id, "error", err)
			return
		}
		slog.Info("uploadService.kickOff: processing finished", "document_id", id, "status", res.Status)
	}()
}

func (s *uploadService) Wait() {
	s.wg.Wait()
}

var pdfcpuInit sync.Once

// pageCount returns the PDF page count, or 0 when the file cannot be read.
func pageCount(ctx context.Context, data []byte) (n int) {
	// pdfcpu panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "uploadService.Upload: counting pdf pages", "panic", r)
			n = 0
		}
	}()
	pdfcpuInit.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		slog.WarnContext(ctx, "uploadService.Upload: counting pdf pages", "error", err)
		return 0
	}
	return n
}
