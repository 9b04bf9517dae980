package domain

import "strings"

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF: "application/pdf",
	FileTypeJPG: "image/jpeg",
	FileTypePNG: "image/png",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// DocumentType is the closed classification of an uploaded file.
type DocumentType string

const (
	DocumentTypeBankStatement DocumentType = "bank_statement"
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypeReceipt       DocumentType = "receipt"
	DocumentTypeGeneric       DocumentType = "generic"
)

// DocumentTypes lists every DocumentType in catalog order.
var DocumentTypes = []DocumentType{
	DocumentTypeBankStatement,
	DocumentTypeInvoice,
	DocumentTypeReceipt,
	DocumentTypeGeneric,
}

var documentTypeAliases = map[string]DocumentType{
	"bank_statement":    DocumentTypeBankStatement,
	"bankstatement":     DocumentTypeBankStatement,
	"statement":         DocumentTypeBankStatement,
	"account_statement": DocumentTypeBankStatement,
	"invoice":           DocumentTypeInvoice,
	"bill":              DocumentTypeInvoice,
	"tax_invoice":       DocumentTypeInvoice,
	"receipt":           DocumentTypeReceipt,
	"purchase_receipt":  DocumentTypeReceipt,
	"generic":           DocumentTypeGeneric,
	"other":             DocumentTypeGeneric,
}

// ParseDocumentType maps a free-form label onto the closed set. The second
// return value is false when the label does not name a known type.
func ParseDocumentType(label string) (DocumentType, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.Trim(key, `"'.`)
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	t, ok := documentTypeAliases[key]
	return t, ok
}

// Valid reports whether t is one of the closed set.
func (t DocumentType) Valid() bool {
	for _, dt := range DocumentTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// PipelineStatus is the processing state of a document.
type PipelineStatus string

const (
	StatusPending     PipelineStatus = "pending"
	StatusClassifying PipelineStatus = "classifying"
	StatusExtracting  PipelineStatus = "extracting"
	StatusNormalizing PipelineStatus = "normalizing"
	StatusScoring     PipelineStatus = "scoring"
	StatusCompleted   PipelineStatus = "completed"
	StatusFailed      PipelineStatus = "failed"
)

var nextStatus = map[PipelineStatus]PipelineStatus{
	StatusPending:     StatusClassifying,
	StatusClassifying: StatusExtracting,
	StatusExtracting:  StatusNormalizing,
	StatusNormalizing: StatusScoring,
	StatusScoring:     StatusCompleted,
}

// ParsePipelineStatus maps a case-insensitive status name onto a
// PipelineStatus.
func ParsePipelineStatus(s string) (PipelineStatus, bool) {
	st := PipelineStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := nextStatus[st]; ok || st == StatusCompleted || st == StatusFailed {
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s PipelineStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the successor state in the happy path.
func (s PipelineStatus) Next() (PipelineStatus, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// CanTransitionTo reports whether moving from s to target is allowed.
// Transitions are strictly sequential; FAILED is reachable from any
// non-terminal state.
func (s PipelineStatus) CanTransitionTo(target PipelineStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StatusFailed {
		return true
	}
	n, ok := nextStatus[s]
	return ok && n == target
}

// Stage is a unit of pipeline work recorded in the processing log.
type Stage string

const (
	StageClassify  Stage = "CLASSIFY"
	StageExtract   Stage = "EXTRACT"
	StageNormalize Stage = "NORMALIZE"
	StageScore     Stage = "SCORE"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageClassify, StageExtract, StageNormalize, StageScore}

// Status returns the pipeline status a document holds while the stage runs.
func (s Stage) Status() PipelineStatus {
	switch s {
	case StageClassify:
		return StatusClassifying
	case StageExtract:
		return StatusExtracting
	case StageNormalize:
		return StatusNormalizing
	case StageScore:
		return StatusScoring
	default:
		return StatusPending
	}
}

// StageOutcome is the result recorded for a stage attempt.
type StageOutcome string

const (
	OutcomeStarted StageOutcome = "started"
	OutcomeSuccess StageOutcome = "success"
	OutcomeFailure StageOutcome = "failure"
	OutcomeRetried StageOutcome = "retried"
)

// SemanticType tells normalization and scoring how to treat a field value.
type SemanticType string

const (
	SemanticDate          SemanticType = "date"
	SemanticAmount        SemanticType = "amount"
	SemanticCurrency      SemanticType = "currency"
	SemanticAccountNumber SemanticType = "account_number"
	SemanticEmail         SemanticType = "email"
	SemanticPhone         SemanticType = "phone"
	SemanticText          SemanticType = "text"
)

// Failure reasons recorded on FAILED documents.
const (
	ReasonClassificationExhausted = "classification_exhausted"
	ReasonExtractionExhausted     = "extraction_exhausted"
)

// Review reasons attached to fields and transactions.
const (
	ReviewExtractionFailed    = "extraction_failed"
	ReviewNormalizationFailed = "normalization_failed"
	ReviewDateGuessed         = "ambiguous_date_order"
	ReviewLowConfidence       = "low_confidence"
	ReviewMandatoryLow        = "mandatory_field_low_confidence"
	ReviewMandatoryMissing    = "mandatory_field_missing"
	ReviewDocumentLow         = "document_low_confidence"
	ReviewOutOfOrder          = "date_out_of_order"
	ReviewCurrencyMismatch    = "currency_mismatch"
)
