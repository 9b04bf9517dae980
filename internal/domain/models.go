package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document represents one uploaded file and its pipeline state.
type Document struct {
	ID                       uuid.UUID      `db:"id" json:"id"`
	Filename                 string         `db:"filename" json:"filename"`
	ContentType              string         `db:"content_type" json:"content_type"`
	ContentHash              string         `db:"content_hash" json:"content_hash"`
	StoragePath              string         `db:"storage_path" json:"storage_path"`
	SizeBytes                int64          `db:"size_bytes" json:"size_bytes"`
	PageCount                int            `db:"page_count" json:"page_count"`
	DocumentType             *DocumentType  `db:"document_type" json:"document_type,omitempty"`
	ClassificationConfidence *float64       `db:"classification_confidence" json:"classification_confidence,omitempty"`
	Status                   PipelineStatus `db:"status" json:"status"`
	OverallConfidence        *float64       `db:"overall_confidence" json:"overall_confidence,omitempty"`
	NeedsReview              bool           `db:"needs_review" json:"needs_review"`
	FailureReason            string         `db:"failure_reason" json:"failure_reason,omitempty"`
	LeaseOwner               *string        `db:"lease_owner" json:"-"`
	LeaseExpiresAt           *time.Time     `db:"lease_expires_at" json:"-"`
	Attempts                 int            `db:"attempts" json:"attempts"`
	ModelUsed                string         `db:"model_used" json:"model_used,omitempty"`
	ProcessingMillis         int64          `db:"processing_millis" json:"processing_millis"`
	UploadedBy               string         `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt                time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt              *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// TypeOrGeneric returns the classified type, or generic when unclassified.
func (d *Document) TypeOrGeneric() DocumentType {
	if d.DocumentType == nil {
		return DocumentTypeGeneric
	}
	return *d.DocumentType
}

// LeaseHeldBy reports whether owner holds a live lease at now.
func (d *Document) LeaseHeldBy(owner string, now time.Time) bool {
	return d.LeaseOwner != nil && *d.LeaseOwner == owner &&
		d.LeaseExpiresAt != nil && d.LeaseExpiresAt.After(now)
}

// ExtractedField is one logical field extracted from a document.
type ExtractedField struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	DocumentID         uuid.UUID    `db:"document_id" json:"document_id"`
	Position           int          `db:"position" json:"position"`
	Name               string       `db:"name" json:"name"`
	Group              string       `db:"field_group" json:"group"`
	RowIndex           *int         `db:"row_index" json:"row_index,omitempty"`
	Key                string       `db:"field_key" json:"key"`
	SemanticType       SemanticType `db:"semantic_type" json:"semantic_type"`
	RawValue           string       `db:"raw_value" json:"raw_value"`
	NormalizedValue    *string      `db:"normalized_value" json:"normalized_value,omitempty"`
	Currency           string       `db:"currency" json:"currency,omitempty"`
	ProviderConfidence *float64     `db:"provider_confidence" json:"provider_confidence,omitempty"`
	Confidence         float64      `db:"confidence" json:"confidence"`
	Page               *int         `db:"page" json:"page,omitempty"`
	BBox               JSONFloats   `db:"bbox" json:"bbox,omitempty"`
	NeedsReview        bool         `db:"needs_review" json:"needs_review"`
	ReviewReasons      JSONStrings  `db:"review_reasons" json:"review_reasons,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// Flag marks the field for review with a reason.
func (f *ExtractedField) Flag(reason string) {
	f.NeedsReview = true
	f.ReviewReasons = append(f.ReviewReasons, reason)
}

// HasReason reports whether reason was recorded on the field.
func (f *ExtractedField) HasReason(reason string) bool {
	for _, r := range f.ReviewReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// DisplayValue returns the normalized value when present, else the raw value.
func (f *ExtractedField) DisplayValue() string {
	if f.NormalizedValue != nil {
		return *f.NormalizedValue
	}
	return f.RawValue
}

// Transaction is one statement line item. Position preserves ledger order.
type Transaction struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	DocumentID      uuid.UUID           `db:"document_id" json:"document_id"`
	Position        int                 `db:"position" json:"position"`
	Date            *string             `db:"txn_date" json:"date,omitempty"`
	Description     string              `db:"description" json:"description"`
	Debit           decimal.NullDecimal `db:"debit" json:"debit"`
	Credit          decimal.NullDecimal `db:"credit" json:"credit"`
	Balance         decimal.NullDecimal `db:"balance" json:"balance"`
	Currency        string              `db:"currency" json:"currency,omitempty"`
	RawRow          json.RawMessage     `db:"raw_row" json:"raw_row"`
	NormalizedRow   json.RawMessage     `db:"normalized_row" json:"normalized_row,omitempty"`
	FieldConfidence JSONFloatMap        `db:"field_confidence" json:"field_confidence"`
	Confidence      float64             `db:"confidence" json:"confidence"`
	NeedsReview     bool                `db:"needs_review" json:"needs_review"`
	ReviewReasons   JSONStrings         `db:"review_reasons" json:"review_reasons,omitempty"`
	Page            *int                `db:"page" json:"page,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

// Flag marks the transaction for review with a reason.
func (t *Transaction) Flag(reason string) {
	t.NeedsReview = true
	t.ReviewReasons = append(t.ReviewReasons, reason)
}

// ProcessingLogEntry records one stage attempt. Entries are append-only.
type ProcessingLogEntry struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	DocumentID     uuid.UUID       `db:"document_id" json:"document_id"`
	Stage          Stage           `db:"stage" json:"stage"`
	Outcome        StageOutcome    `db:"outcome" json:"outcome"`
	Attempt        int             `db:"attempt" json:"attempt"`
	DurationMillis int64           `db:"duration_millis" json:"duration_millis"`
	ErrorDetail    *string         `db:"error_detail" json:"error_detail,omitempty"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// StoredFile maps a content hash to the path of the physical file.
type StoredFile struct {
	Hash      string    `db:"hash" json:"hash"`
	Path      string    `db:"path" json:"path"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Status *PipelineStatus
	Offset int
	Limit  int
}

// JSONStrings is a string slice stored as a JSON array column.
type JSONStrings []string

// Value implements driver.Valuer.
func (s JSONStrings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Scan implements sql.Scanner.
func (s *JSONStrings) Scan(src any) error {
	return scanJSON(src, s)
}

// JSONFloats is a float slice stored as a JSON array column.
type JSONFloats []float64

// Value implements driver.Valuer.
func (f JSONFloats) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal([]float64(f))
}

// Scan implements sql.Scanner.
func (f *JSONFloats) Scan(src any) error {
	return scanJSON(src, f)
}

// JSONFloatMap is a string-to-float map stored as a JSON object column.
type JSONFloatMap map[string]float64

// Value implements driver.Valuer.
func (m JSONFloatMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]float64(m))
}

// Scan implements sql.Scanner.
func (m *JSONFloatMap) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
