package xlsxexport_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ledgerscan/internal/export"
	"ledgerscan/internal/xlsxexport"
)

func TestWrite(t *testing.T) {
	e := &export.Export{
		Header: export.Header{
			DocumentID:   uuid.New(),
			Filename:     "march.pdf",
			DocumentType: "bank_statement",
			Status:       "completed",
		},
		Fields: []export.Field{
			{Name: "bank.bank_name", Group: "bank", Value: "First Bank", RawValue: "First Bank"},
		},
		Transactions: []export.Transaction{
			{Position: 0, Date: "2024-03-01", Description: "Coffee", Debit: "4.50"},
			{Position: 1, Date: "2024-03-02", Description: "Salary", Credit: "2000.00"},
		},
		Totals: export.Totals{Count: 2, Debits: "4.50", Credits: "2000.00", Net: "1995.50"},
	}

	var buf bytes.Buffer
	require.NoError(t, xlsxexport.Write(&buf, e))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Document", "Fields", "Transactions"}, f.GetSheetList())

	doc, err := f.GetRows("Document")
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "march.pdf"}, doc[1])

	fields, err := f.GetRows("Fields")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "bank.bank_name", fields[1][0])

	txns, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "Coffee", txns[1][2])
	assert.Equal(t, "Salary", txns[2][2])
}
