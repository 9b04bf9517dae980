package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerscan/internal/classifier"
	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/extraction"
	"ledgerscan/internal/normalize"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/prompt"
	"ledgerscan/internal/scoring"
)

const maxErrorDetail = 1000

// FileReader reads back a stored file for processing.
type FileReader interface {
	ReadAll(ctx context.Context, path string) ([]byte, error)
}

// ProcessOptions controls a single Process call.
type ProcessOptions struct {
	// Reprocess re-runs a document from the start even when it is terminal.
	Reprocess bool
	// WorkerID overrides the configured lease owner.
	WorkerID string
	// Hint is a caller-supplied document type that skips classification.
	Hint string
}

// ProcessResult summarizes the outcome of a Process call.
type ProcessResult struct {
	DocumentID        uuid.UUID             `json:"document_id"`
	Status            domain.PipelineStatus `json:"status"`
	Skipped           bool                  `json:"skipped"`
	ResumedFrom       domain.Stage          `json:"resumed_from,omitempty"`
	DocumentType      domain.DocumentType   `json:"document_type,omitempty"`
	OverallConfidence *float64              `json:"overall_confidence,omitempty"`
	NeedsReview       bool                  `json:"needs_review"`
	FailureReason     string                `json:"failure_reason,omitempty"`
}

// PipelineService drives a document through classify, extract, normalize
// and score, recording every stage attempt in the processing log.
type PipelineService struct {
	docs       port.DocumentRepository
	fields     port.FieldRepository
	logs       port.ProcessingLogRepository
	files      FileReader
	provider   port.ExtractionProvider
	classifier *classifier.Classifier
	scorer     *scoring.Scorer
	cfg        config.PipelineConfig
	normOpts   normalize.Options
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// PipelineOption customizes a PipelineService.
type PipelineOption func(*PipelineService)

// WithSleeper replaces the back-off sleep between provider attempts.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) PipelineOption {
	return func(s *PipelineService) { s.sleep = fn }
}

// WithPipelineClock replaces the clock used for durations.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(s *PipelineService) { s.now = now }
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(
	docs port.DocumentRepository,
	fields port.FieldRepository,
	logs port.ProcessingLogRepository,
	files FileReader,
	p port.ExtractionProvider,
	scorer *scoring.Scorer,
	cfg config.PipelineConfig,
	normOpts normalize.Options,
	opts ...PipelineOption,
) *PipelineService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	s := &PipelineService{
		docs:       docs,
		fields:     fields,
		logs:       logs,
		files:      files,
		provider:   p,
		classifier: classifier.New(p, cfg.FallbackClassificationConfidence),
		scorer:     scorer,
		cfg:        cfg,
		normOpts:   normOpts,
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LeaseTTL returns the lease duration used for claims.
func (s *PipelineService) LeaseTTL() time.Duration {
	return s.cfg.LeaseTTL
}

// Process claims a document and runs the remaining stages. Terminal
// documents are skipped unless opts.Reprocess is set. A document that ends
// FAILED is a normal outcome and is reported in the result, not as an error.
func (s *PipelineService) Process(ctx context.Context, id uuid.UUID, opts ProcessOptions) (*ProcessResult, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: %w", err)
	}
	if doc.Status.IsTerminal() && !opts.Reprocess {
		return skipped(doc), nil
	}

	owner := s.owner(opts)
	doc, err = s.docs.Claim(ctx, id, owner, s.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: %w", err)
	}
	// Another caller may have finished the document between the read and the claim.
	if doc.Status.IsTerminal() && !opts.Reprocess {
		if err := s.docs.ReleaseLease(ctx, id, owner); err != nil {
			slog.WarnContext(ctx, "pipeline.Process: releasing lease", "document_id", id, "error", err)
		}
		return skipped(doc), nil
	}
	return s.ProcessClaimed(ctx, doc, owner, opts)
}

// ProcessClaimed runs the pipeline for a document whose lease owner already
// holds. The worker uses it after ClaimNext.
func (s *PipelineService) ProcessClaimed(ctx context.Context, doc *domain.Document, owner string, opts ProcessOptions) (*ProcessResult, error) {
	if opts.Reprocess {
		if err := s.docs.Reset(ctx, doc.ID, owner); err != nil {
			return nil, fmt.Errorf("pipeline.Process: reset: %w", err)
		}
		doc.Status = domain.StatusPending
		doc.DocumentType = nil
		doc.ClassificationConfidence = nil
		doc.OverallConfidence = nil
		doc.NeedsReview = false
		doc.FailureReason = ""
		slog.InfoContext(ctx, "pipeline.Process: document reset for reprocessing", "document_id", doc.ID)
	}

	resume, err := s.resumeIndex(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Process: %w", err)
	}

	run := &pipelineRun{doc: doc, owner: owner, hint: opts.Hint, started: s.now()}
	result := &ProcessResult{DocumentID: doc.ID}
	if resume < len(domain.Stages) {
		result.ResumedFrom = domain.Stages[resume]
	}
	slog.InfoContext(ctx, "pipeline.Process: starting",
		"document_id", doc.ID, "status", doc.Status, "resume_stage", result.ResumedFrom, "owner", owner)

	for _, stage := range domain.Stages[resume:] {
		if err := s.docs.ExtendLease(ctx, doc.ID, owner, s.cfg.LeaseTTL); err != nil {
			return nil, fmt.Errorf("pipeline.Process: %s: %w", stage, err)
		}
		if doc.Status != stage.Status() {
			if err := s.docs.UpdateStatus(ctx, doc.ID, doc.Status, stage.Status()); err != nil {
				return nil, fmt.Errorf("pipeline.Process: %s: %w", stage, err)
			}
			doc.Status = stage.Status()
		}

		failed, err := s.runStage(ctx, run, stage)
		if err != nil {
			return nil, fmt.Errorf("pipeline.Process: %s: %w", stage, err)
		}
		if failed != "" {
			result.Status = domain.StatusFailed
			result.FailureReason = failed
			result.DocumentType = doc.TypeOrGeneric()
			return result, nil
		}
	}

	doc.ProcessingMillis = s.now().Sub(run.started).Milliseconds()
	if run.model != "" {
		doc.ModelUsed = run.model
	}
	if err := s.docs.Complete(ctx, doc); err != nil {
		return nil, fmt.Errorf("pipeline.Process: complete: %w", err)
	}
	slog.InfoContext(ctx, "pipeline.Process: document completed",
		"document_id", doc.ID, "type", doc.TypeOrGeneric(), "needs_review", doc.NeedsReview,
		"duration_ms", doc.ProcessingMillis)

	result.Status = domain.StatusCompleted
	result.DocumentType = doc.TypeOrGeneric()
	result.OverallConfidence = doc.OverallConfidence
	result.NeedsReview = doc.NeedsReview
	return result, nil
}

type pipelineRun struct {
	doc     *domain.Document
	owner   string
	hint    string
	data    []byte
	model   string
	started time.Time
}

// stageFunc does the work of one attempt. Errors wrapped in attemptError
// are provider-side and count against the attempt budget; any other error
// is fatal.
type stageFunc func(ctx context.Context, run *pipelineRun) (map[string]any, error)

type attemptError struct {
	err error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

func retryable(err error) bool {
	return provider.IsTransient(err) || errors.Is(err, domain.ErrProviderMalformedOutput)
}

// runStage executes stage with the attempt budget. It returns a non-empty
// failure reason when the document was moved to FAILED.
func (s *PipelineService) runStage(ctx context.Context, run *pipelineRun, stage domain.Stage) (string, error) {
	var fn stageFunc
	var exhausted string
	switch stage {
	case domain.StageClassify:
		fn, exhausted = s.classify, domain.ReasonClassificationExhausted
	case domain.StageExtract:
		fn, exhausted = s.extract, domain.ReasonExtractionExhausted
	case domain.StageNormalize:
		fn = s.normalize
	case domain.StageScore:
		fn = s.score
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}

	docID := run.doc.ID
	if err := s.appendLog(ctx, docID, stage, domain.OutcomeStarted, 1, 0, nil, nil); err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		begin := s.now()
		meta, err := fn(ctx, run)
		elapsed := s.now().Sub(begin).Milliseconds()
		if err == nil {
			if err := s.appendLog(ctx, docID, stage, domain.OutcomeSuccess, attempt, elapsed, nil, meta); err != nil {
				return "", err
			}
			slog.InfoContext(ctx, "pipeline.runStage: stage succeeded",
				"document_id", docID, "stage", stage, "attempt", attempt, "duration_ms", elapsed)
			return "", nil
		}

		var ae *attemptError
		if !errors.As(err, &ae) || exhausted == "" {
			if logErr := s.appendLog(ctx, docID, stage, domain.OutcomeFailure, attempt, elapsed, err, nil); logErr != nil {
				slog.ErrorContext(ctx, "pipeline.runStage: recording failure", "document_id", docID, "error", logErr)
			}
			slog.ErrorContext(ctx, "pipeline.runStage: fatal stage error",
				"document_id", docID, "stage", stage, "attempt", attempt, "error", err)
			return "", err
		}

		if attempt >= s.cfg.MaxAttempts || !retryable(ae.err) {
			if err := s.appendLog(ctx, docID, stage, domain.OutcomeFailure, attempt, elapsed, ae.err, nil); err != nil {
				return "", err
			}
			if err := s.docs.Fail(ctx, docID, exhausted); err != nil {
				return "", err
			}
			run.doc.Status = domain.StatusFailed
			run.doc.FailureReason = exhausted
			slog.WarnContext(ctx, "pipeline.runStage: document failed",
				"document_id", docID, "stage", stage, "attempts", attempt, "reason", exhausted, "error", ae.err)
			return exhausted, nil
		}

		if err := s.appendLog(ctx, docID, stage, domain.OutcomeRetried, attempt, elapsed, ae.err, nil); err != nil {
			return "", err
		}
		delay := s.backoff(attempt, ae.err)
		slog.WarnContext(ctx, "pipeline.runStage: retrying stage",
			"document_id", docID, "stage", stage, "attempt", attempt, "delay", delay, "error", ae.err)
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}
		if err := s.docs.ExtendLease(ctx, docID, run.owner, s.cfg.LeaseTTL); err != nil {
			return "", err
		}
	}
}

// backoff doubles from BackoffBase per attempt, capped at BackoffMax. A
// provider's Retry-After hint raises the delay up to the same cap.
func (s *PipelineService) backoff(attempt int, err error) time.Duration {
	d := s.cfg.BackoffBase
	for i := 1; i < attempt && d < s.cfg.BackoffMax; i++ {
		d *= 2
	}
	var ue *provider.UnavailableError
	if errors.As(err, &ue) && ue.RetryAfter > d {
		d = ue.RetryAfter
	}
	if s.cfg.BackoffMax > 0 && d > s.cfg.BackoffMax {
		d = s.cfg.BackoffMax
	}
	return d
}

func (s *PipelineService) readFile(ctx context.Context, run *pipelineRun) ([]byte, error) {
	if run.data != nil {
		return run.data, nil
	}
	data, err := s.files.ReadAll(ctx, run.doc.StoragePath)
	if err != nil {
		return nil, err
	}
	run.data = data
	return data, nil
}

func (s *PipelineService) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

func (s *PipelineService) classify(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	data, err := s.readFile(ctx, run)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	cls, err := s.classifier.Classify(pctx, classifier.Input{
		Data:        data,
		ContentType: run.doc.ContentType,
		Hint:        run.hint,
	})
	if err != nil {
		return nil, &attemptError{err: err}
	}

	if err := s.docs.UpdateClassification(ctx, run.doc.ID, cls.Type, cls.Confidence, cls.Model); err != nil {
		return nil, err
	}
	t, conf := cls.Type, cls.Confidence
	run.doc.DocumentType = &t
	run.doc.ClassificationConfidence = &conf
	if cls.Model != "" {
		run.model = cls.Model
	}

	return map[string]any{
		"document_type": cls.Type,
		"confidence":    cls.Confidence,
		"provider":      cls.Provider,
		"model":         cls.Model,
		"from_hint":     cls.FromHint,
	}, nil
}

func (s *PipelineService) extract(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	data, err := s.readFile(ctx, run)
	if err != nil {
		return nil, err
	}
	docType := run.doc.TypeOrGeneric()

	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	out, err := s.provider.Extract(pctx, port.ProviderInput{
		FileBytes:    data,
		ContentType:  run.doc.ContentType,
		Prompt:       prompt.Extraction(docType),
		DocumentType: docType,
	})
	if err != nil {
		return nil, &attemptError{err: err}
	}

	res := extraction.Decode(docType, out.Text)
	if res.Status == extraction.Failure {
		return nil, &attemptError{err: res.Err}
	}

	nctx := normalize.NewContext(s.normOpts)
	if s.normOpts.MaskPII {
		maskExtracted(res.Fields, res.Transactions, nctx)
	}

	if err := s.fields.ReplaceFields(ctx, run.doc.ID, res.Fields); err != nil {
		return nil, err
	}
	if err := s.fields.ReplaceTransactions(ctx, run.doc.ID, res.Transactions); err != nil {
		return nil, err
	}
	if out.Model != "" {
		run.model = out.Model
	}

	return map[string]any{
		"provider":     out.Provider,
		"model":        out.Model,
		"result":       res.Status.String(),
		"fields":       len(res.Fields),
		"invalid":      res.Invalid,
		"transactions": len(res.Transactions),
	}, nil
}

// maskExtracted masks identifiers before anything is persisted.
func maskExtracted(fields []domain.ExtractedField, txns []domain.Transaction, nctx *normalize.Context) {
	for i := range fields {
		f := &fields[i]
		if f.RawValue != "" && normalize.IsPIIField(f.Name) {
			f.RawValue = normalize.Mask(f.RawValue, nctx).Value
		}
	}
	for i := range txns {
		t := &txns[i]
		if len(t.RawRow) == 0 {
			continue
		}
		var row any
		if err := json.Unmarshal(t.RawRow, &row); err != nil {
			continue
		}
		if masked, err := json.Marshal(normalize.MaskTree(row, nctx)); err == nil {
			t.RawRow = masked
		}
	}
}

func (s *PipelineService) normalize(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	fields, err := s.fields.ListByDocument(ctx, run.doc.ID)
	if err != nil {
		return nil, err
	}
	txns, err := s.fields.ListTransactions(ctx, run.doc.ID)
	if err != nil {
		return nil, err
	}

	nctx := normalize.NewContext(s.normOpts)
	normalize.Prime(extraction.Rebuild(fields), nctx)

	var normalized, failed, guessed int
	for i := range fields {
		f := &fields[i]
		clearReasons(f, domain.ReviewDateGuessed, domain.ReviewNormalizationFailed)
		f.NormalizedValue = nil
		f.Currency = ""
		if f.HasReason(domain.ReviewExtractionFailed) {
			continue
		}

		out := normalize.Field(f.RawValue, f.SemanticType, nctx)
		if !out.OK {
			f.Flag(domain.ReviewNormalizationFailed)
			failed++
			slog.DebugContext(ctx, "pipeline.normalize: field left raw",
				"document_id", run.doc.ID, "field", f.Name, "error", out.Err())
			continue
		}
		v := out.Value
		f.NormalizedValue = &v
		f.Currency = out.Currency
		if out.Guessed {
			f.Flag(domain.ReviewDateGuessed)
			guessed++
		}
		normalized++
	}

	applyRowValues(fields, txns)
	rowFailures := normalizeRows(txns, nctx)

	if err := s.fields.UpdateFields(ctx, fields); err != nil {
		return nil, err
	}
	if err := s.fields.UpdateTransactions(ctx, txns); err != nil {
		return nil, err
	}

	order, established := nctx.DateOrder()
	source := "default"
	if established {
		source = "document"
	}
	return map[string]any{
		"normalized":        normalized,
		"failed":            failed,
		"guessed_dates":     guessed,
		"row_failures":      rowFailures,
		"date_order":        order.String(),
		"date_order_source": source,
		"currency":          nctx.Currency(),
	}, nil
}

// normalizeRows stores each transaction's raw row with its leaves normalized
// and its shape unchanged. It returns the number of leaves left raw.
func normalizeRows(txns []domain.Transaction, nctx *normalize.Context) int {
	failures := 0
	for i := range txns {
		t := &txns[i]
		t.NormalizedRow = nil
		if len(t.RawRow) == 0 {
			continue
		}
		var row any
		dec := json.NewDecoder(bytes.NewReader(t.RawRow))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			continue
		}
		out, failed := normalize.Tree(row, nctx)
		failures += len(failed)
		if raw, err := json.Marshal(out); err == nil {
			t.NormalizedRow = raw
		}
	}
	return failures
}

// applyRowValues copies normalized row subfields onto their transactions.
func applyRowValues(fields []domain.ExtractedField, txns []domain.Transaction) {
	byPos := make(map[int]*domain.Transaction, len(txns))
	for i := range txns {
		t := &txns[i]
		t.Date = nil
		t.Debit = decimal.NullDecimal{}
		t.Credit = decimal.NullDecimal{}
		t.Balance = decimal.NullDecimal{}
		t.Currency = ""
		byPos[t.Position] = t
	}

	for i := range fields {
		f := &fields[i]
		if f.Group != prompt.TransactionRows || f.RowIndex == nil {
			continue
		}
		t, ok := byPos[*f.RowIndex]
		if !ok {
			continue
		}
		if f.Key == "description" {
			t.Description = f.DisplayValue()
			continue
		}
		if f.NormalizedValue == nil {
			continue
		}
		v := *f.NormalizedValue
		switch f.Key {
		case "date":
			t.Date = &v
		case "debit", "credit", "balance":
			d, err := decimal.NewFromString(v)
			if err != nil {
				continue
			}
			nd := decimal.NewNullDecimal(d)
			switch f.Key {
			case "debit":
				t.Debit = nd
			case "credit":
				t.Credit = nd
			default:
				t.Balance = nd
			}
			if t.Currency == "" {
				t.Currency = f.Currency
			}
		}
	}
}

func (s *PipelineService) score(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	fields, err := s.fields.ListByDocument(ctx, run.doc.ID)
	if err != nil {
		return nil, err
	}
	txns, err := s.fields.ListTransactions(ctx, run.doc.ID)
	if err != nil {
		return nil, err
	}

	res := s.scorer.Score(run.doc.TypeOrGeneric(), fields)
	res.Apply(fields, txns)

	if err := s.fields.UpdateFields(ctx, fields); err != nil {
		return nil, err
	}
	if err := s.fields.UpdateTransactions(ctx, txns); err != nil {
		return nil, err
	}

	doc := res.Document
	run.doc.OverallConfidence = &doc
	run.doc.NeedsReview = res.NeedsReview

	flagged := 0
	for i := range fields {
		if fields[i].NeedsReview {
			flagged++
		}
	}
	return map[string]any{
		"document_confidence": res.Document,
		"needs_review":        res.NeedsReview,
		"reasons":             res.Reasons,
		"flagged_fields":      flagged,
		"transactions":        len(txns),
	}, nil
}

// resumeIndex returns the index into domain.Stages where processing
// continues. A success entry marks its stage done; a later started entry for
// an earlier stage invalidates everything after it.
func (s *PipelineService) resumeIndex(ctx context.Context, doc *domain.Document) (int, error) {
	if doc.Status == domain.StatusPending {
		return 0, nil
	}
	entries, err := s.logs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return 0, err
	}

	done := -1
	for _, e := range entries {
		idx := stageIndex(e.Stage)
		if idx < 0 {
			continue
		}
		switch e.Outcome {
		case domain.OutcomeStarted:
			if idx-1 < done {
				done = idx - 1
			}
		case domain.OutcomeSuccess:
			done = idx
		}
	}

	resume := done + 1
	// The status only advances once the previous stage has succeeded.
	if current := statusIndex(doc.Status); current > resume {
		resume = current
	}
	if resume > 0 && doc.DocumentType == nil {
		resume = 0
	}
	if resume == len(domain.Stages) && doc.OverallConfidence == nil {
		resume = len(domain.Stages) - 1
	}
	return resume, nil
}

func statusIndex(status domain.PipelineStatus) int {
	for i, s := range domain.Stages {
		if s.Status() == status {
			return i
		}
	}
	return -1
}

func stageIndex(stage domain.Stage) int {
	for i, s := range domain.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

func (s *PipelineService) appendLog(
	ctx context.Context,
	docID uuid.UUID,
	stage domain.Stage,
	outcome domain.StageOutcome,
	attempt int,
	durationMillis int64,
	cause error,
	meta map[string]any,
) error {
	entry := &domain.ProcessingLogEntry{
		DocumentID:     docID,
		Stage:          stage,
		Outcome:        outcome,
		Attempt:        attempt,
		DurationMillis: durationMillis,
	}
	if cause != nil {
		detail := cause.Error()
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		entry.ErrorDetail = &detail
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encoding log metadata: %w", err)
		}
		entry.Metadata = raw
	}
	return s.logs.Append(ctx, entry)
}

func (s *PipelineService) owner(opts ProcessOptions) string {
	if opts.WorkerID != "" {
		return opts.WorkerID
	}
	if s.cfg.WorkerID != "" {
		return s.cfg.WorkerID
	}
	return "ledgerscan"
}

func skipped(doc *domain.Document) *ProcessResult {
	return &ProcessResult{
		DocumentID:        doc.ID,
		Status:            doc.Status,
		Skipped:           true,
		DocumentType:      doc.TypeOrGeneric(),
		OverallConfidence: doc.OverallConfidence,
		NeedsReview:       doc.NeedsReview,
		FailureReason:     doc.FailureReason,
	}
}

func clearReasons(f *domain.ExtractedField, reasons ...string) {
	kept := f.ReviewReasons[:0]
	for _, r := range f.ReviewReasons {
		drop := false
		for _, x := range reasons {
			if r == x {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, r)
		}
	}
	f.ReviewReasons = kept
	f.NeedsReview = len(kept) > 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
