// Package xlsxexport writes a document export as an Excel workbook with
// Document, Fields and Transactions sheets.
package xlsxexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ledgerscan/internal/export"
)

const (
	sheetDocument     = "Document"
	sheetFields       = "Fields"
	sheetTransactions = "Transactions"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Write renders e as a workbook to w.
func Write(w io.Writer, e *export.Export) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetDocument); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{sheetFields, sheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx sheet: %w", err)
		}
	}

	if err := writeDocument(f, e); err != nil {
		return err
	}
	if err := writeFields(f, e.Fields); err != nil {
		return err
	}
	if err := writeTransactions(f, e); err != nil {
		return err
	}

	index, _ := f.GetSheetIndex(sheetDocument)
	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeDocument(f *excelize.File, e *export.Export) error {
	h := e.Header
	completed := ""
	if h.CompletedAt != nil {
		completed = h.CompletedAt.Format(time.RFC3339)
	}
	rows := [][]any{
		{"Document ID", h.DocumentID.String()},
		{"Filename", h.Filename},
		{"Document Type", h.DocumentType},
		{"Status", h.Status},
		{"Overall Confidence", h.OverallConfidence},
		{"Needs Review", h.NeedsReview},
		{"Model", h.ModelUsed},
		{"Pages", h.PageCount},
		{"Processing Time (ms)", h.ProcessingMillis},
		{"Completed At", completed},
		{"Transactions", e.Totals.Count},
		{"Total Debits", amount(e.Totals.Debits)},
		{"Total Credits", amount(e.Totals.Credits)},
		{"Net", amount(e.Totals.Net)},
		{"Currency", e.Totals.Currency},
	}
	if err := writeRows(f, sheetDocument, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetDocument, "A", "A", 24)
	_ = f.SetColWidth(sheetDocument, "B", "B", 44)
	return nil
}

func writeFields(f *excelize.File, fields []export.Field) error {
	rows := [][]any{{"Field", "Group", "Value", "Raw Value", "Currency", "Confidence", "Needs Review", "Reasons"}}
	for _, fd := range fields {
		rows = append(rows, []any{
			fd.Name, fd.Group, fd.Value, fd.RawValue, fd.Currency,
			fd.Confidence, fd.NeedsReview, strings.Join(fd.Reasons, "; "),
		})
	}
	if err := writeRows(f, sheetFields, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetFields, "A", "A", 32)
	_ = f.SetColWidth(sheetFields, "C", "D", 28)
	_ = f.SetColWidth(sheetFields, "H", "H", 40)
	return nil
}

func writeTransactions(f *excelize.File, e *export.Export) error {
	rows := [][]any{{"Position", "Date", "Description", "Debit", "Credit", "Balance", "Currency", "Confidence", "Needs Review", "Reasons"}}
	for _, t := range e.Transactions {
		rows = append(rows, []any{
			t.Position, t.Date, t.Description,
			amount(t.Debit), amount(t.Credit), amount(t.Balance),
			t.Currency, t.Confidence, t.NeedsReview, strings.Join(t.Reasons, "; "),
		})
	}
	if err := writeRows(f, sheetTransactions, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetTransactions, "B", "B", 14)
	_ = f.SetColWidth(sheetTransactions, "C", "C", 48)
	_ = f.SetColWidth(sheetTransactions, "D", "F", 14)
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// amount turns a fixed-point string into a number cell; blanks stay blank.
func amount(s string) any {
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.InexactFloat64()
}
