package extraction_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/extraction"
)

const statementAnswer = `{
  "balances": {
    "closing_balance": {"value": "$1,234.50", "confidence": 0.93, "page": 2, "bbox": [10, 20, 110, 40]},
    "opening_balance": {"value": 1000.00, "confidence": 0.9}
  },
  "bank": {"bank_name": "First Bank", "currency": {"value": "USD", "confidence": 0.99}},
  "custom_notes": {"remark": "see overleaf"},
  "transactions": [
    {"date": {"value": "03/04/2024", "confidence": 0.9, "page": 1}, "description": {"value": "Coffee"}, "debit": {"value": "4.50"}},
    {"date": {"value": "15/04/2024", "confidence": 0.8, "page": 1}, "description": "Salary", "credit": {"value": "2,000.00", "confidence": 0.95}}
  ]
}`

func fieldByName(t *testing.T, fields []domain.ExtractedField, name string) domain.ExtractedField {
	t.Helper()
	for _, f := range fields {
		if f.Name == name && f.RowIndex == nil {
			return f
		}
	}
	require.Failf(t, "field not found", "%s", name)
	return domain.ExtractedField{}
}

func TestDecode_Statement(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, statementAnswer)

	require.Equal(t, extraction.Success, res.Status)
	require.NoError(t, res.Err)
	assert.Zero(t, res.Invalid)

	closing := fieldByName(t, res.Fields, "balances.closing_balance")
	assert.Equal(t, "$1,234.50", closing.RawValue)
	assert.Equal(t, "balances", closing.Group)
	assert.Equal(t, "closing_balance", closing.Key)
	assert.Equal(t, domain.SemanticAmount, closing.SemanticType)
	require.NotNil(t, closing.ProviderConfidence)
	assert.InDelta(t, 0.93, *closing.ProviderConfidence, 1e-9)
	require.NotNil(t, closing.Page)
	assert.Equal(t, 2, *closing.Page)
	assert.Equal(t, domain.JSONFloats{10, 20, 110, 40}, closing.BBox)

	opening := fieldByName(t, res.Fields, "balances.opening_balance")
	assert.Equal(t, "1000.00", opening.RawValue)

	bankName := fieldByName(t, res.Fields, "bank.bank_name")
	assert.Equal(t, "First Bank", bankName.RawValue)
	assert.Nil(t, bankName.ProviderConfidence)

	assert.Equal(t, domain.SemanticCurrency, fieldByName(t, res.Fields, "bank.currency").SemanticType)
	assert.Equal(t, "see overleaf", fieldByName(t, res.Fields, "custom_notes.remark").RawValue)
}

func TestDecode_FieldOrderFollowsLayout(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, statementAnswer)

	var names []string
	for i, f := range res.Fields {
		assert.Equal(t, i, f.Position)
		if f.RowIndex == nil {
			names = append(names, f.Name)
		}
	}
	assert.Equal(t, []string{
		"bank.bank_name",
		"bank.currency",
		"balances.opening_balance",
		"balances.closing_balance",
		"custom_notes.remark",
	}, names)
}

func TestDecode_Transactions(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, statementAnswer)

	require.Len(t, res.Transactions, 2)
	first, second := res.Transactions[0], res.Transactions[1]
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, "Coffee", first.Description)
	require.NotNil(t, first.Page)
	assert.Equal(t, 1, *first.Page)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, "Salary", second.Description)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(second.RawRow, &raw))
	assert.Contains(t, raw, "credit")

	var rowFields []domain.ExtractedField
	for _, f := range res.Fields {
		if f.RowIndex != nil && *f.RowIndex == 0 {
			rowFields = append(rowFields, f)
		}
	}
	require.Len(t, rowFields, 3)
	assert.Equal(t, "transactions.date", rowFields[0].Name)
	assert.Equal(t, "date", rowFields[0].Key)
	assert.Equal(t, "transactions", rowFields[0].Group)
	assert.Equal(t, domain.SemanticDate, rowFields[0].SemanticType)
	assert.Equal(t, "transactions.debit", rowFields[2].Name)
	assert.Equal(t, domain.SemanticAmount, rowFields[2].SemanticType)
}

func TestDecode_NullFieldsAreOmitted(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeInvoice, `{"totals": {"total_amount": {"value": null, "confidence": 0}, "subtotal": null, "tax_amount": "5.00"}}`)

	require.Equal(t, extraction.Success, res.Status)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "totals.tax_amount", res.Fields[0].Name)
}

func TestDecode_PartialSuccess(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeInvoice, `{"totals": {
		"total_amount": {"value": "100.00", "confidence": 0.9},
		"tax_amount": {"value": "5.00", "confidence": 85},
		"subtotal": {"amount": "95.00"}
	}}`)

	require.Equal(t, extraction.PartialSuccess, res.Status)
	assert.Equal(t, 1, res.Invalid)
	assert.NoError(t, res.Err)

	tax := fieldByName(t, res.Fields, "totals.tax_amount")
	assert.True(t, tax.NeedsReview)
	assert.True(t, tax.HasReason(domain.ReviewExtractionFailed))
	assert.Zero(t, tax.Confidence)

	sub := fieldByName(t, res.Fields, "totals.subtotal.amount")
	assert.False(t, sub.NeedsReview)

	total := fieldByName(t, res.Fields, "totals.total_amount")
	assert.False(t, total.NeedsReview)
}

func TestDecode_Failure(t *testing.T) {
	tests := map[string]string{
		"not json":     "Sorry, I cannot read this document.",
		"truncated":    `{"totals": {"total_amount": {"value": "1`,
		"all invalid":  `{"totals": {"total_amount": {"value": "1", "confidence": 3}}}`,
		"bad bbox":     `{"totals": {"total_amount": {"value": "1", "bbox": [1, 2]}}}`,
		"empty object": `{}`,
		"only nulls":   `{"totals": {"total_amount": null, "subtotal": {"value": null}}}`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			res := extraction.Decode(domain.DocumentTypeReceipt, text)
			assert.Equal(t, extraction.Failure, res.Status)
			assert.ErrorIs(t, res.Err, domain.ErrProviderMalformedOutput)
		})
	}
}

func TestDecode_LineItemsAreNotTransactions(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeInvoice, `{"line_items": [{"description": "Widget", "amount": "10.00"}]}`)

	require.Equal(t, extraction.Success, res.Status)
	assert.Empty(t, res.Transactions)
	require.Len(t, res.Fields, 2)
	assert.Equal(t, "line_items.description", res.Fields[0].Name)
	require.NotNil(t, res.Fields[0].RowIndex)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "success", extraction.Success.String())
	assert.Equal(t, "partial_success", extraction.PartialSuccess.String())
	assert.Equal(t, "failure", extraction.Failure.String())
}

const pagedStatementAnswer = `{
  "balances": {"closing_balance": {"value": "$95.50", "confidence": 0.9}},
  "pages": [
    {"page_number": 1, "transactions": [
      {"date": {"value": "03/04/2024", "confidence": 0.9}, "description": {"value": "Coffee"}, "debit": {"value": "4.50"}},
      {"date": {"value": "09/04/2024", "confidence": 0.9}, "description": "Bakery", "debit": {"value": "0.50"}}
    ]},
    {"page_number": {"value": "2"}, "transactions": [
      {"date": {"value": "15/04/2024", "confidence": 0.8, "page": 3}, "description": "Refund", "credit": {"value": "100.00"}}
    ]}
  ]
}`

func TestDecode_TransactionsNestedInPages(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, pagedStatementAnswer)

	require.Equal(t, extraction.Success, res.Status)
	assert.Zero(t, res.Invalid)
	require.Len(t, res.Transactions, 3)

	descriptions := []string{"Coffee", "Bakery", "Refund"}
	for i, txn := range res.Transactions {
		assert.Equal(t, i, txn.Position)
		assert.Equal(t, descriptions[i], txn.Description)
	}
	require.NotNil(t, res.Transactions[1].Page)
	assert.Equal(t, 1, *res.Transactions[1].Page)
	require.NotNil(t, res.Transactions[2].Page)
	assert.Equal(t, 3, *res.Transactions[2].Page, "a field's own page wins over the page group")

	var dates []string
	for _, f := range res.Fields {
		if f.Group == "transactions" && f.Key == "date" {
			require.NotNil(t, f.RowIndex)
			assert.Equal(t, len(dates), *f.RowIndex)
			assert.Equal(t, "transactions.date", f.Name)
			dates = append(dates, f.RawValue)
		}
		assert.False(t, f.HasReason(domain.ReviewExtractionFailed), f.Name)
	}
	assert.Equal(t, []string{"03/04/2024", "09/04/2024", "15/04/2024"}, dates)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(res.Transactions[2].RawRow, &raw))
	assert.Contains(t, raw, "credit")
}

func TestDecode_TransactionsInsideSection(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, `{"statement": {"transactions": [
		{"date": "01/02/2024", "description": "Rent", "debit": "900.00"}
	]}}`)

	require.Equal(t, extraction.Success, res.Status)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "Rent", res.Transactions[0].Description)
	assert.Nil(t, res.Transactions[0].Page)
}

func TestRebuild(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeBankStatement, pagedStatementAnswer)
	tree := extraction.Rebuild(res.Fields)

	balances, ok := tree["balances"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$95.50", balances["closing_balance"])

	rows, ok := tree["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 3)
	last, ok := rows[2].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "15/04/2024", last["date"])
	assert.Equal(t, "100.00", last["credit"])

	pages, ok := tree["pages"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"page_number": "1"}, pages[0])
}

func TestRebuild_SkipsUnreadableFields(t *testing.T) {
	res := extraction.Decode(domain.DocumentTypeInvoice, `{"totals": {
		"total_amount": {"value": "100.00"},
		"tax_amount": {"value": "5.00", "confidence": 85}
	}}`)
	require.Equal(t, extraction.PartialSuccess, res.Status)

	tree := extraction.Rebuild(res.Fields)
	assert.Equal(t, map[string]any{"totals": map[string]any{"total_amount": "100.00"}}, tree)
}
