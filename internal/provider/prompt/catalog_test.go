package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/provider/prompt"
)

func TestClassification_ListsClosedSet(t *testing.T) {
	p := prompt.Classification()
	for _, dt := range domain.DocumentTypes {
		assert.Contains(t, p, string(dt))
	}
	assert.Contains(t, p, `"document_type"`)
}

func TestExtraction_PerType(t *testing.T) {
	statement := prompt.Extraction(domain.DocumentTypeBankStatement)
	assert.Contains(t, statement, `"closing_balance"`)
	assert.Contains(t, statement, `"transactions"`)

	invoice := prompt.Extraction(domain.DocumentTypeInvoice)
	assert.Contains(t, invoice, `"total_amount"`)
	assert.Contains(t, invoice, `"line_items"`)

	receipt := prompt.Extraction(domain.DocumentTypeReceipt)
	assert.Contains(t, receipt, `"items"`)
}

func TestExtraction_UnknownTypeUsesGeneric(t *testing.T) {
	assert.Equal(t, prompt.Extraction(domain.DocumentTypeGeneric), prompt.Extraction("passport"))
	assert.Equal(t, domain.DocumentTypeGeneric, prompt.LayoutFor("passport").Type)
}

func TestLayoutFor_MandatoryFieldsAreInLayout(t *testing.T) {
	has := func(l prompt.Layout, section, field string) bool {
		for _, s := range l.Sections {
			if s.Name != section {
				continue
			}
			for _, f := range s.Fields {
				if f == field {
					return true
				}
			}
		}
		return false
	}
	assert.True(t, has(prompt.LayoutFor(domain.DocumentTypeBankStatement), "balances", "closing_balance"))
	assert.True(t, has(prompt.LayoutFor(domain.DocumentTypeInvoice), "totals", "total_amount"))
	assert.True(t, has(prompt.LayoutFor(domain.DocumentTypeReceipt), "totals", "total_amount"))
}
