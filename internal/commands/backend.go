package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ledgerscan/internal/app"
	"ledgerscan/internal/config"
	"ledgerscan/internal/csvexport"
	"ledgerscan/internal/export"
	"ledgerscan/internal/port"
	"ledgerscan/internal/repository/memory"
	"ledgerscan/internal/repository/postgres"
	"ledgerscan/internal/scoring"
	"ledgerscan/internal/service"
	"ledgerscan/internal/storage"
	"ledgerscan/internal/storage/local"
	"ledgerscan/internal/xlsxexport"
)

// backend is the set of services one command invocation works against.
type backend struct {
	pipeline *service.PipelineService
	uploads  service.UploadService
	exports  service.ExportService
	closers  []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openDatabase wires the services to Postgres and the configured storage.
// The provider is only built when the command runs the pipeline.
func (d Deps) openDatabase(ctx context.Context, cfg *config.Config, withProvider bool) (*backend, error) {
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	store, err := app.OpenStorage(ctx, &cfg.Storage, postgres.NewStoredFileRepo(db))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var p port.ExtractionProvider
	if withProvider {
		if p, err = d.NewProvider(&cfg.Provider); err != nil {
			_ = store.Close()
			_ = db.Close()
			return nil, err
		}
	}

	b, err := newBackend(cfg, postgres.NewDocumentRepo(db), postgres.NewFieldRepo(db), postgres.NewProcessingLogRepo(db), store.Gateway, p)
	if err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, err
	}
	b.closers = append(b.closers, db.Close, store.Close)
	return b, nil
}

// openMemory wires the services to an in-process store with files kept
// under dir.
func (d Deps) openMemory(cfg *config.Config, dir string) (*backend, error) {
	blobs, err := local.New(filepath.Join(dir, "files"))
	if err != nil {
		return nil, err
	}
	p, err := d.NewProvider(&cfg.Provider)
	if err != nil {
		return nil, err
	}
	mem := memory.New()
	return newBackend(cfg, mem, mem.Fields(), mem.Logs(), storage.NewGateway(blobs, mem), p)
}

func newBackend(
	cfg *config.Config,
	docs port.DocumentRepository,
	fields port.FieldRepository,
	logs port.ProcessingLogRepository,
	gw *storage.Gateway,
	p port.ExtractionProvider,
) (*backend, error) {
	scorer, err := scoring.New(cfg.ScoringConfig())
	if err != nil {
		return nil, fmt.Errorf("building scorer: %w", err)
	}
	normOpts, err := cfg.NormalizeOptions()
	if err != nil {
		return nil, fmt.Errorf("reading normalization options: %w", err)
	}
	pipeline := service.NewPipelineService(docs, fields, logs, gw, p, scorer, cfg.Pipeline, normOpts)
	return &backend{
		pipeline: pipeline,
		uploads:  service.NewUploadService(docs, gw, nil, service.UploadConfig{MaxBytes: cfg.Upload.MaxBytes()}),
		exports:  service.NewExportService(docs, fields, logs),
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeExport(w io.Writer, e *export.Export, format string) error {
	switch format {
	case "json":
		return printJSON(w, e)
	case "csv":
		if _, err := w.Write(csvexport.BOM); err != nil {
			return err
		}
		return csvexport.NewWriter(w).WriteExport(e)
	case "xlsx":
		return xlsxexport.Write(w, e)
	default:
		return fmt.Errorf("unknown format %q: use json, csv or xlsx", format)
	}
}

// openOutput creates path, or returns fallback when path is empty.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
