// Package memory implements the repository ports in process memory. It backs
// the one-shot CLI pipeline and service tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

// Store holds documents, fields, transactions, logs and the hash index. It
// implements port.DocumentRepository and port.HashIndex directly; Fields and
// Logs return the other repository views. All methods are safe for
// concurrent use.
type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	docs   map[uuid.UUID]*domain.Document
	fields map[uuid.UUID][]domain.ExtractedField
	txns   map[uuid.UUID][]domain.Transaction
	logs   map[uuid.UUID][]domain.ProcessingLogEntry
	files  map[string]domain.StoredFile
}

var (
	_ port.DocumentRepository = (*Store)(nil)
	_ port.HashIndex          = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		now:    time.Now,
		docs:   make(map[uuid.UUID]*domain.Document),
		fields: make(map[uuid.UUID][]domain.ExtractedField),
		txns:   make(map[uuid.UUID][]domain.Transaction),
		logs:   make(map[uuid.UUID][]domain.ProcessingLogEntry),
		files:  make(map[string]domain.StoredFile),
	}
}

// SetClock replaces the clock used for timestamps and lease expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("memory.Create: duplicate id %s", doc.ID)
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	now := s.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.docs[doc.ID] = copyDocument(doc)
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return copyDocument(doc), nil
}

func (s *Store) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Document
	for _, d := range s.docs {
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		all = append(all, *copyDocument(d))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := min(filter.Offset, total)
	end := min(start+limit, total)
	return all[start:end], total, nil
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.PipelineStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.Status != from {
		return fmt.Errorf("%w: %s -> %s (stored status %s)", domain.ErrInvalidTransition, from, to, doc.Status)
	}
	doc.Status = to
	doc.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdateClassification(_ context.Context, id uuid.UUID, docType domain.DocumentType, confidence float64, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.DocumentType = &docType
	doc.ClassificationConfidence = &confidence
	doc.ModelUsed = model
	doc.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) Complete(_ context.Context, in *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[in.ID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.Status != domain.StatusScoring {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, doc.Status, domain.StatusCompleted)
	}
	now := s.now().UTC()
	doc.Status = domain.StatusCompleted
	doc.OverallConfidence = copyFloat(in.OverallConfidence)
	doc.NeedsReview = in.NeedsReview
	doc.ProcessingMillis = in.ProcessingMillis
	doc.ModelUsed = in.ModelUsed
	doc.FailureReason = ""
	doc.CompletedAt = &now
	doc.UpdatedAt = now
	doc.LeaseOwner = nil
	doc.LeaseExpiresAt = nil

	in.Status = doc.Status
	in.CompletedAt = &now
	in.UpdatedAt = now
	in.LeaseOwner = nil
	in.LeaseExpiresAt = nil
	return nil
}

func (s *Store) Fail(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.Status.IsTerminal() {
		return fmt.Errorf("%w: document is terminal", domain.ErrInvalidTransition)
	}
	doc.Status = domain.StatusFailed
	doc.FailureReason = reason
	doc.UpdatedAt = s.now().UTC()
	doc.LeaseOwner = nil
	doc.LeaseExpiresAt = nil
	return nil
}

func (s *Store) Claim(_ context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	now := s.now()
	if s.leased(doc, now) {
		return nil, domain.ErrAlreadyClaimed
	}
	s.lease(doc, owner, now, ttl)
	return copyDocument(doc), nil
}

func (s *Store) ClaimNext(_ context.Context, owner string, limit int, ttl time.Duration) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var candidates []*domain.Document
	for _, d := range s.docs {
		if d.Status.IsTerminal() || s.leased(d, now) {
			continue
		}
		candidates = append(candidates, d)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	claimed := make([]domain.Document, 0, len(candidates))
	for _, d := range candidates {
		s.lease(d, owner, now, ttl)
		claimed = append(claimed, *copyDocument(d))
	}
	return claimed, nil
}

func (s *Store) ExtendLease(_ context.Context, id uuid.UUID, owner string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	now := s.now()
	if !doc.LeaseHeldBy(owner, now) {
		return domain.ErrLeaseExpired
	}
	exp := now.Add(ttl)
	doc.LeaseExpiresAt = &exp
	return nil
}

func (s *Store) ReleaseLease(_ context.Context, id uuid.UUID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if doc.LeaseOwner != nil && *doc.LeaseOwner == owner {
		doc.LeaseOwner = nil
		doc.LeaseExpiresAt = nil
	}
	return nil
}

func (s *Store) Reset(_ context.Context, id uuid.UUID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if !doc.LeaseHeldBy(owner, s.now()) {
		return domain.ErrLeaseExpired
	}
	doc.Status = domain.StatusPending
	doc.DocumentType = nil
	doc.ClassificationConfidence = nil
	doc.OverallConfidence = nil
	doc.NeedsReview = false
	doc.FailureReason = ""
	doc.ModelUsed = ""
	doc.ProcessingMillis = 0
	doc.CompletedAt = nil
	doc.UpdatedAt = s.now().UTC()
	delete(s.fields, id)
	delete(s.txns, id)
	return nil
}

func (s *Store) leased(doc *domain.Document, now time.Time) bool {
	return doc.LeaseOwner != nil && doc.LeaseExpiresAt != nil && doc.LeaseExpiresAt.After(now)
}

func (s *Store) lease(doc *domain.Document, owner string, now time.Time, ttl time.Duration) {
	o := owner
	exp := now.Add(ttl)
	doc.LeaseOwner = &o
	doc.LeaseExpiresAt = &exp
	doc.Attempts++
	doc.UpdatedAt = now.UTC()
}

func (r fieldRepo) ReplaceFields(_ context.Context, docID uuid.UUID, fields []domain.ExtractedField) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for i := range fields {
		if fields[i].ID == uuid.Nil {
			fields[i].ID = uuid.New()
		}
		fields[i].DocumentID = docID
		fields[i].CreatedAt = now
	}
	s.fields[docID] = copyFields(fields)
	return nil
}

func (r fieldRepo) ListByDocument(_ context.Context, docID uuid.UUID) ([]domain.ExtractedField, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := copyFields(s.fields[docID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r fieldRepo) UpdateFields(_ context.Context, fields []domain.ExtractedField) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		stored := s.fields[f.DocumentID]
		for i := range stored {
			if stored[i].ID == f.ID {
				stored[i] = copyFields([]domain.ExtractedField{f})[0]
			}
		}
	}
	return nil
}

func (r fieldRepo) ReplaceTransactions(_ context.Context, docID uuid.UUID, txns []domain.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for i := range txns {
		if txns[i].ID == uuid.Nil {
			txns[i].ID = uuid.New()
		}
		txns[i].DocumentID = docID
		txns[i].CreatedAt = now
	}
	s.txns[docID] = copyTransactions(txns)
	return nil
}

func (r fieldRepo) ListTransactions(_ context.Context, docID uuid.UUID) ([]domain.Transaction, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := copyTransactions(s.txns[docID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r fieldRepo) UpdateTransactions(_ context.Context, txns []domain.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		stored := s.txns[t.DocumentID]
		for i := range stored {
			if stored[i].ID == t.ID {
				stored[i] = copyTransactions([]domain.Transaction{t})[0]
			}
		}
	}
	return nil
}

func (r logRepo) Append(_ context.Context, entry *domain.ProcessingLogEntry) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = s.now().UTC()
	e := *entry
	e.Metadata = append(json.RawMessage(nil), entry.Metadata...)
	s.logs[entry.DocumentID] = append(s.logs[entry.DocumentID], e)
	return nil
}

// ListByDocument returns the processing log of a document in append order.
func (r logRepo) ListByDocument(_ context.Context, docID uuid.UUID) ([]domain.ProcessingLogEntry, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProcessingLogEntry(nil), s.logs[docID]...), nil
}

func (r logRepo) CountByDocument(_ context.Context, docID uuid.UUID) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[docID]), nil
}

type fieldRepo struct{ s *Store }

// Fields returns the store's port.FieldRepository view.
func (s *Store) Fields() port.FieldRepository { return fieldRepo{s: s} }

type logRepo struct{ s *Store }

// Logs returns the store's port.ProcessingLogRepository view.
func (s *Store) Logs() port.ProcessingLogRepository { return logRepo{s: s} }

// Lookup implements port.HashIndex.
func (s *Store) Lookup(_ context.Context, hash string) (*domain.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (s *Store) Record(_ context.Context, file *domain.StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.Hash] = *file
	return nil
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	if d.DocumentType != nil {
		t := *d.DocumentType
		c.DocumentType = &t
	}
	c.ClassificationConfidence = copyFloat(d.ClassificationConfidence)
	c.OverallConfidence = copyFloat(d.OverallConfidence)
	if d.LeaseOwner != nil {
		o := *d.LeaseOwner
		c.LeaseOwner = &o
	}
	if d.LeaseExpiresAt != nil {
		e := *d.LeaseExpiresAt
		c.LeaseExpiresAt = &e
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyFields(in []domain.ExtractedField) []domain.ExtractedField {
	if in == nil {
		return nil
	}
	out := make([]domain.ExtractedField, len(in))
	for i, f := range in {
		out[i] = f
		if f.RowIndex != nil {
			r := *f.RowIndex
			out[i].RowIndex = &r
		}
		if f.NormalizedValue != nil {
			v := *f.NormalizedValue
			out[i].NormalizedValue = &v
		}
		out[i].ProviderConfidence = copyFloat(f.ProviderConfidence)
		if f.Page != nil {
			p := *f.Page
			out[i].Page = &p
		}
		out[i].BBox = append(domain.JSONFloats(nil), f.BBox...)
		out[i].ReviewReasons = append(domain.JSONStrings(nil), f.ReviewReasons...)
	}
	return out
}

func copyTransactions(in []domain.Transaction) []domain.Transaction {
	if in == nil {
		return nil
	}
	out := make([]domain.Transaction, len(in))
	for i, t := range in {
		out[i] = t
		if t.Date != nil {
			d := *t.Date
			out[i].Date = &d
		}
		if t.Page != nil {
			p := *t.Page
			out[i].Page = &p
		}
		out[i].RawRow = append(json.RawMessage(nil), t.RawRow...)
		out[i].NormalizedRow = append(json.RawMessage(nil), t.NormalizedRow...)
		if t.FieldConfidence != nil {
			out[i].FieldConfidence = make(domain.JSONFloatMap, len(t.FieldConfidence))
			for k, v := range t.FieldConfidence {
				out[i].FieldConfidence[k] = v
			}
		}
		out[i].ReviewReasons = append(domain.JSONStrings(nil), t.ReviewReasons...)
	}
	return out
}
