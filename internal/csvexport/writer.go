package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ledgerscan/internal/export"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// fieldColumns is the header row of the field section.
var fieldColumns = []string{
	"Field",
	"Group",
	"Value",
	"Raw Value",
	"Currency",
	"Confidence",
	"Needs Review",
	"Reasons",
}

// transactionColumns is the header row of the transaction section.
var transactionColumns = []string{
	"Position",
	"Date",
	"Description",
	"Debit",
	"Credit",
	"Balance",
	"Currency",
	"Confidence",
	"Needs Review",
	"Reasons",
}

// Writer wraps csv.Writer for exporting documents as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteExport writes a header block of key/value rows, the field section,
// and, when the document has any, the transaction section followed by a
// totals row. Each section starts with its own column header row.
func (w *Writer) WriteExport(e *export.Export) error {
	h := e.Header
	header := [][]string{
		{"Document ID", h.DocumentID.String()},
		{"Filename", h.Filename},
		{"Document Type", h.DocumentType},
		{"Status", h.Status},
		{"Overall Confidence", formatConfidence(h.OverallConfidence)},
		{"Needs Review", formatBool(h.NeedsReview)},
		{"Model", h.ModelUsed},
		{"Pages", strconv.Itoa(h.PageCount)},
		{"Processing Time (ms)", strconv.FormatInt(h.ProcessingMillis, 10)},
		{"Completed At", formatTime(h.CompletedAt)},
	}
	for _, row := range header {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	if err := w.csv.Write(fieldColumns); err != nil {
		return err
	}
	for _, f := range e.Fields {
		row := []string{
			f.Name,
			f.Group,
			f.Value,
			f.RawValue,
			f.Currency,
			formatConfidence(f.Confidence),
			formatBool(f.NeedsReview),
			strings.Join(f.Reasons, ";"),
		}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	if len(e.Transactions) == 0 {
		w.csv.Flush()
		return w.csv.Error()
	}
	if err := w.csv.Write(transactionColumns); err != nil {
		return err
	}
	for _, t := range e.Transactions {
		row := []string{
			strconv.Itoa(t.Position),
			t.Date,
			t.Description,
			t.Debit,
			t.Credit,
			t.Balance,
			t.Currency,
			formatConfidence(t.Confidence),
			formatBool(t.NeedsReview),
			strings.Join(t.Reasons, ";"),
		}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	totals := []string{"Totals", strconv.Itoa(e.Totals.Count), "", e.Totals.Debits, e.Totals.Credits, e.Totals.Net, e.Totals.Currency}
	if err := w.csv.Write(totals); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}.{ext}
func BuildFilename(name, ext string) string {
	sanitized := SanitizeFilename(strings.TrimSuffix(name, fileExt(name)))
	if sanitized == "" {
		sanitized = "document"
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
