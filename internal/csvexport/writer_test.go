package csvexport

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/export"
)

func sampleExport() *export.Export {
	completed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &export.Export{
		Header: export.Header{
			DocumentID:        uuid.MustParse("6f1c2b7e-1b0e-4b4e-9f3a-2c1d0e9f8a7b"),
			Filename:          "march.pdf",
			DocumentType:      "bank_statement",
			Status:            "completed",
			OverallConfidence: 0.91234,
			ModelUsed:         "claude-sonnet-4-20250514",
			PageCount:         2,
			ProcessingMillis:  5400,
			CompletedAt:       &completed,
		},
		Fields: []export.Field{
			{Name: "bank.bank_name", Group: "bank", Value: "First Bank", RawValue: "First Bank", Confidence: 0.95},
			{Name: "balances.closing_balance", Group: "balances", Value: "1234.50", RawValue: "$1,234.50", Currency: "USD", Confidence: 0.6, NeedsReview: true, Reasons: []string{"low_confidence", "ambiguous_date_order"}},
		},
		Transactions: []export.Transaction{
			{Position: 0, Date: "2024-03-01", Description: "Coffee", Debit: "4.50", Balance: "995.50", Currency: "USD", Confidence: 0.9},
			{Position: 1, Date: "2024-03-02", Description: "Salary", Credit: "2000.00", Balance: "2995.50", Currency: "USD", Confidence: 0.88},
		},
		Totals: export.Totals{Count: 2, Debits: "4.50", Credits: "2000.00", Net: "1995.50", Currency: "USD"},
	}
}

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	r := csv.NewReader(buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteExport_Sections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteExport(sampleExport()))

	rows := readAll(t, &buf)

	assert.Equal(t, []string{"Document ID", "6f1c2b7e-1b0e-4b4e-9f3a-2c1d0e9f8a7b"}, rows[0])
	assert.Equal(t, []string{"Overall Confidence", "0.9123"}, rows[4])
	assert.Equal(t, []string{"Completed At", "2024-05-01T10:00:00Z"}, rows[9])
	assert.Equal(t, fieldColumns, rows[10])
	assert.Equal(t, "bank.bank_name", rows[11][0])
	assert.Equal(t, "low_confidence;ambiguous_date_order", rows[12][7])
	assert.Equal(t, "Yes", rows[12][6])
	assert.Equal(t, transactionColumns, rows[13])
	assert.Equal(t, []string{"0", "2024-03-01", "Coffee", "4.50", "", "995.50", "USD", "0.9000", "No", ""}, rows[14])
	require.Len(t, rows, 17)

	last := rows[len(rows)-1]
	assert.Equal(t, []string{"Totals", "2", "", "4.50", "2000.00", "1995.50", "USD"}, last)
}

func TestWriteExport_NoTransactions(t *testing.T) {
	e := sampleExport()
	e.Transactions = nil

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteExport(e))

	rows := readAll(t, &buf)
	require.Len(t, rows, 13)
	assert.Equal(t, "balances.closing_balance", rows[12][0])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Q3 Bank Statements", "Q3_Bank_Statements"},
		{"special chars", "FY 2024-25 / Q3 (Oct–Dec)", "FY_2024-25_Q3_Oct_Dec"},
		{"unicode", "कंपनी Statement", "Statement"},
		{"hyphens and underscores preserved", "my-statement_2025", "my-statement_2025"},
		{"consecutive underscores collapsed", "test___statement", "test_statement"},
		{"leading/trailing cleaned", "  hello  ", "hello"},
		{
			"long name truncated",
			"abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-extra",
			"abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrs",
		},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestBuildFilename(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	assert.Equal(t, "march_statement_"+today+".csv", BuildFilename("march statement.pdf", "csv"))
	assert.Equal(t, "document_"+today+".xlsx", BuildFilename("", "xlsx"))
}
