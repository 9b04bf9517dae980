// Package export builds the flat, serializer-neutral view of a completed
// document used by the CSV, XLSX and JSON exports.
package export

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerscan/internal/domain"
)

// Header is the document-level block of an export.
type Header struct {
	DocumentID        uuid.UUID  `json:"document_id"`
	Filename          string     `json:"filename"`
	DocumentType      string     `json:"document_type"`
	Status            string     `json:"status"`
	OverallConfidence float64    `json:"overall_confidence"`
	NeedsReview       bool       `json:"needs_review"`
	ModelUsed         string     `json:"model_used,omitempty"`
	PageCount         int        `json:"page_count"`
	ProcessingMillis  int64      `json:"processing_millis"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Field is one scalar field row. Row subfields of transactions are not
// repeated here; they appear in Transactions.
type Field struct {
	Name        string   `json:"name"`
	Group       string   `json:"group"`
	Value       string   `json:"value"`
	RawValue    string   `json:"raw_value"`
	Currency    string   `json:"currency,omitempty"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needs_review"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Transaction is one ledger line.
type Transaction struct {
	Position    int      `json:"position"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Debit       string   `json:"debit"`
	Credit      string   `json:"credit"`
	Balance     string   `json:"balance"`
	Currency    string   `json:"currency,omitempty"`
	Confidence  float64  `json:"confidence"`
	NeedsReview bool     `json:"needs_review"`
	Reasons     []string `json:"reasons,omitempty"`

	// Row is the source row with normalized leaves, JSON exports only.
	Row json.RawMessage `json:"row,omitempty"`
}

// Totals sums the transaction amounts.
type Totals struct {
	Count    int    `json:"count"`
	Debits   string `json:"debits"`
	Credits  string `json:"credits"`
	Net      string `json:"net"`
	Currency string `json:"currency,omitempty"`
}

// Export is the complete flat view of one document.
type Export struct {
	Header       Header        `json:"header"`
	Fields       []Field       `json:"fields"`
	Transactions []Transaction `json:"transactions"`
	Totals       Totals        `json:"totals"`
}

// Build flattens a document with its fields and transactions.
func Build(doc *domain.Document, fields []domain.ExtractedField, txns []domain.Transaction) *Export {
	out := &Export{
		Header: Header{
			DocumentID:       doc.ID,
			Filename:         doc.Filename,
			DocumentType:     string(doc.TypeOrGeneric()),
			Status:           string(doc.Status),
			NeedsReview:      doc.NeedsReview,
			ModelUsed:        doc.ModelUsed,
			PageCount:        doc.PageCount,
			ProcessingMillis: doc.ProcessingMillis,
			CompletedAt:      doc.CompletedAt,
		},
		Fields:       make([]Field, 0, len(fields)),
		Transactions: make([]Transaction, 0, len(txns)),
	}
	if doc.OverallConfidence != nil {
		out.Header.OverallConfidence = *doc.OverallConfidence
	}

	for i := range fields {
		f := &fields[i]
		if f.RowIndex != nil && len(txns) > 0 && f.Group == transactionGroup {
			continue
		}
		out.Fields = append(out.Fields, Field{
			Name:        f.Name,
			Group:       f.Group,
			Value:       f.DisplayValue(),
			RawValue:    f.RawValue,
			Currency:    f.Currency,
			Confidence:  f.Confidence,
			NeedsReview: f.NeedsReview,
			Reasons:     []string(f.ReviewReasons),
		})
	}

	debits, credits := decimal.Zero, decimal.Zero
	for i := range txns {
		t := &txns[i]
		row := Transaction{
			Position:    t.Position,
			Description: t.Description,
			Debit:       formatAmount(t.Debit),
			Credit:      formatAmount(t.Credit),
			Balance:     formatAmount(t.Balance),
			Currency:    t.Currency,
			Confidence:  t.Confidence,
			NeedsReview: t.NeedsReview,
			Reasons:     []string(t.ReviewReasons),
			Row:         t.NormalizedRow,
		}
		if t.Date != nil {
			row.Date = *t.Date
		}
		if t.Debit.Valid {
			debits = debits.Add(t.Debit.Decimal)
		}
		if t.Credit.Valid {
			credits = credits.Add(t.Credit.Decimal)
		}
		if out.Totals.Currency == "" {
			out.Totals.Currency = t.Currency
		}
		out.Transactions = append(out.Transactions, row)
	}
	out.Totals.Count = len(txns)
	out.Totals.Debits = debits.StringFixed(2)
	out.Totals.Credits = credits.StringFixed(2)
	out.Totals.Net = credits.Sub(debits).StringFixed(2)
	return out
}

const transactionGroup = "transactions"

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
