// Package prompt holds the closed catalog of classification and extraction
// prompts, one per document type, together with the field layout each
// extraction prompt asks for.
package prompt

import (
	"fmt"
	"strings"

	"ledgerscan/internal/domain"
)

// Section is a named group of scalar fields in an extraction answer.
type Section struct {
	Name   string
	Fields []string
}

// Layout describes the answer shape requested for one document type. Rows
// names the array of repeated line entries, if the type has one.
type Layout struct {
	Type     domain.DocumentType
	Sections []Section
	Rows     string
	RowKeys  []string
}

// TransactionRows is the row group that becomes ledger transactions.
const TransactionRows = "transactions"

var layouts = map[domain.DocumentType]Layout{
	domain.DocumentTypeBankStatement: {
		Type: domain.DocumentTypeBankStatement,
		Sections: []Section{
			{Name: "bank", Fields: []string{"bank_name", "branch", "currency"}},
			{Name: "account", Fields: []string{"account_holder", "account_number", "account_type"}},
			{Name: "period", Fields: []string{"start_date", "end_date", "statement_date"}},
			{Name: "balances", Fields: []string{"opening_balance", "closing_balance", "total_debits", "total_credits"}},
		},
		Rows:    TransactionRows,
		RowKeys: []string{"date", "description", "reference", "debit", "credit", "balance"},
	},
	domain.DocumentTypeInvoice: {
		Type: domain.DocumentTypeInvoice,
		Sections: []Section{
			{Name: "invoice", Fields: []string{"invoice_number", "invoice_date", "due_date", "currency", "payment_terms"}},
			{Name: "vendor", Fields: []string{"name", "address", "tax_id", "email", "phone"}},
			{Name: "buyer", Fields: []string{"name", "address"}},
			{Name: "totals", Fields: []string{"subtotal", "tax_amount", "discount_amount", "total_amount"}},
			{Name: "payment", Fields: []string{"bank_name", "account_number"}},
		},
		Rows:    "line_items",
		RowKeys: []string{"description", "quantity", "unit_price", "amount"},
	},
	domain.DocumentTypeReceipt: {
		Type: domain.DocumentTypeReceipt,
		Sections: []Section{
			{Name: "merchant", Fields: []string{"name", "address", "phone"}},
			{Name: "receipt", Fields: []string{"receipt_number", "date", "currency"}},
			{Name: "totals", Fields: []string{"subtotal", "tax_amount", "tip_amount", "total_amount"}},
			{Name: "payment", Fields: []string{"method", "card_number"}},
		},
		Rows:    "items",
		RowKeys: []string{"description", "quantity", "price"},
	},
	domain.DocumentTypeGeneric: {
		Type: domain.DocumentTypeGeneric,
	},
}

// LayoutFor returns the layout for t. Unknown types get the generic layout.
func LayoutFor(t domain.DocumentType) Layout {
	if l, ok := layouts[t]; ok {
		return l
	}
	return layouts[domain.DocumentTypeGeneric]
}

const fieldContract = `Every field value is an object: {"value": <string or number or null>, "confidence": <0.0-1.0>, "page": <1-based page number>, "bbox": [x0, y0, x1, y1]}.
"page" and "bbox" may be omitted when unknown. Use null for fields not present in the document and confidence 0.0.
Copy values exactly as printed. Do not convert dates, do not remove currency symbols, do not compute missing totals.
Return ONLY a single JSON object with no markdown formatting and no explanation.`

// Classification returns the classification prompt listing the closed set
// of document types with short examples.
func Classification() string {
	var b strings.Builder
	b.WriteString("You classify scanned financial documents. Choose exactly one type from: ")
	names := make([]string, len(domain.DocumentTypes))
	for i, t := range domain.DocumentTypes {
		names[i] = string(t)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n\n")
	b.WriteString(`Examples:
- A page headed "Account Statement" with an account number, a statement period and a table of dated debits, credits and running balances -> {"document_type": "bank_statement", "confidence": 0.97, "reasoning": "transaction table with running balance"}
- A page headed "Tax Invoice" with an invoice number, seller and buyer, line items and an amount due -> {"document_type": "invoice", "confidence": 0.95, "reasoning": "invoice number and amount due"}
- A narrow till slip with a merchant name, purchased items, a total and a card payment line -> {"document_type": "receipt", "confidence": 0.93, "reasoning": "point of sale slip"}
- A letter, form or contract without a ledger, totals or line items -> {"document_type": "generic", "confidence": 0.8, "reasoning": "no financial structure"}

Answer with a single JSON object {"document_type": "...", "confidence": <0.0-1.0>, "reasoning": "..."} and nothing else.`)
	return b.String()
}

// Extraction returns the extraction prompt for t. Unknown types get the
// generic prompt.
func Extraction(t domain.DocumentType) string {
	l := LayoutFor(t)
	var b strings.Builder
	if len(l.Sections) == 0 {
		b.WriteString("You extract data from a scanned document. Group the fields you find into sections named after the part of the document they come from, using snake_case keys, e.g. {\"header\": {\"title\": {...}, \"date\": {...}}}.\n")
		b.WriteString("If the document contains a table of dated amounts, return it as an array named \"" + TransactionRows + "\" with keys date, description, debit, credit, balance.\n\n")
		b.WriteString(fieldContract)
		return b.String()
	}

	fmt.Fprintf(&b, "You extract data from a scanned %s. Return this structure:\n{\n", strings.ReplaceAll(string(l.Type), "_", " "))
	for _, s := range l.Sections {
		fmt.Fprintf(&b, "  %q: {", s.Name)
		for i, f := range s.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: {...}", f)
		}
		b.WriteString("},\n")
	}
	fmt.Fprintf(&b, "  %q: [{", l.Rows)
	for i, k := range l.RowKeys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: {...}", k)
	}
	b.WriteString("}]\n}\n")
	fmt.Fprintf(&b, "Extract EVERY entry of %q from every page, in the order printed.\n\n", l.Rows)
	b.WriteString(fieldContract)
	return b.String()
}
