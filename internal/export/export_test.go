package export_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/export"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestBuild(t *testing.T) {
	bs := domain.DocumentTypeBankStatement
	conf := 0.87
	doc := &domain.Document{
		ID:                uuid.New(),
		Filename:          "march.pdf",
		DocumentType:      &bs,
		Status:            domain.StatusCompleted,
		OverallConfidence: &conf,
		NeedsReview:       true,
	}
	fields := []domain.ExtractedField{
		{Name: "balances.closing_balance", Group: "balances", RawValue: "$1,234.50", NormalizedValue: strPtr("1234.50"), Currency: "USD", Confidence: 0.9},
		{Name: "account.account_holder", Group: "account", RawValue: "J Doe", Confidence: 0.4, NeedsReview: true, ReviewReasons: domain.JSONStrings{"normalization_failed"}},
		{Name: "transactions.date", Group: "transactions", Key: "date", RowIndex: intPtr(0), RawValue: "01/03/2024"},
	}
	txns := []domain.Transaction{
		{Position: 0, Date: strPtr("2024-03-01"), Description: "Coffee", Debit: decimal.NewNullDecimal(decimal.RequireFromString("4.5")), Currency: "USD"},
		{Position: 1, Description: "Salary", Credit: decimal.NewNullDecimal(decimal.RequireFromString("2000")), Balance: decimal.NewNullDecimal(decimal.RequireFromString("2995.5"))},
	}

	e := export.Build(doc, fields, txns)

	assert.Equal(t, "bank_statement", e.Header.DocumentType)
	assert.InDelta(t, 0.87, e.Header.OverallConfidence, 1e-9)
	assert.True(t, e.Header.NeedsReview)

	require.Len(t, e.Fields, 2)
	assert.Equal(t, "1234.50", e.Fields[0].Value)
	assert.Equal(t, "$1,234.50", e.Fields[0].RawValue)
	assert.Equal(t, "J Doe", e.Fields[1].Value)
	assert.Equal(t, []string{"normalization_failed"}, e.Fields[1].Reasons)

	require.Len(t, e.Transactions, 2)
	assert.Equal(t, "2024-03-01", e.Transactions[0].Date)
	assert.Equal(t, "4.50", e.Transactions[0].Debit)
	assert.Equal(t, "", e.Transactions[0].Credit)
	assert.Equal(t, "", e.Transactions[1].Date)
	assert.Equal(t, "2995.50", e.Transactions[1].Balance)

	assert.Equal(t, 2, e.Totals.Count)
	assert.Equal(t, "4.50", e.Totals.Debits)
	assert.Equal(t, "2000.00", e.Totals.Credits)
	assert.Equal(t, "1995.50", e.Totals.Net)
	assert.Equal(t, "USD", e.Totals.Currency)
}

func TestBuild_NoTransactionsKeepsRowFields(t *testing.T) {
	doc := &domain.Document{ID: uuid.New(), Status: domain.StatusCompleted}
	fields := []domain.ExtractedField{
		{Name: "line_items.amount", Group: "line_items", Key: "amount", RowIndex: intPtr(0), RawValue: "10.00"},
	}

	e := export.Build(doc, fields, nil)

	assert.Equal(t, "generic", e.Header.DocumentType)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "0.00", e.Totals.Debits)
	assert.Empty(t, e.Transactions)
}
