package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/scoring"
)

func ptr[T any](v T) *T { return &v }

func field(name string, t domain.SemanticType, normalized string, provider float64) domain.ExtractedField {
	f := domain.ExtractedField{
		Name:               name,
		Key:                name,
		SemanticType:       t,
		RawValue:           normalized,
		ProviderConfidence: ptr(provider),
	}
	if normalized != "" {
		f.NormalizedValue = ptr(normalized)
	}
	return f
}

func rowField(row int, key string, t domain.SemanticType, normalized string, provider float64) domain.ExtractedField {
	f := field("transactions.", t, normalized, provider)
	f.Name = "transactions." + key
	f.Key = key
	f.Group = "transactions"
	f.RowIndex = ptr(row)
	return f
}

func newScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	s, err := scoring.New(scoring.DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestScore_BoundedAndDeterministic(t *testing.T) {
	s := newScorer(t)
	fields := []domain.ExtractedField{
		field("balances.closing_balance", domain.SemanticAmount, "1200.00", 1.4),
		field("account.account_number", domain.SemanticAccountNumber, "XXXXXXXX1234", -0.3),
		field("account.holder", domain.SemanticText, "Jane Roe", 0.8),
		field("period.start_date", domain.SemanticDate, "", 0.9),
	}

	first := s.Score(domain.DocumentTypeBankStatement, fields)
	second := s.Score(domain.DocumentTypeBankStatement, fields)

	assert.Equal(t, first, second)
	for _, fs := range first.Fields {
		assert.GreaterOrEqual(t, fs.Score, 0.0)
		assert.LessOrEqual(t, fs.Score, 1.0)
	}
	assert.GreaterOrEqual(t, first.Document, 0.0)
	assert.LessOrEqual(t, first.Document, 1.0)
}

func TestScore_DocumentMonotonicInMandatoryField(t *testing.T) {
	s := newScorer(t)
	prev := -1.0
	for _, p := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
		fields := []domain.ExtractedField{
			field("balances.closing_balance", domain.SemanticAmount, "10.00", p),
			field("bank.bank_name", domain.SemanticText, "First Bank", 0.9),
		}
		res := s.Score(domain.DocumentTypeBankStatement, fields)
		assert.GreaterOrEqual(t, res.Document, prev, "provider confidence %.2f", p)
		prev = res.Document
	}
}

func TestScore_MandatoryFieldBelowThreshold(t *testing.T) {
	s := newScorer(t)

	res := s.Score(domain.DocumentTypeBankStatement, []domain.ExtractedField{
		field("balances.closing_balance", domain.SemanticAmount, "10.00", 0.3),
	})

	assert.InDelta(t, 0.72, res.Fields[0].Score, 1e-9)
	assert.True(t, res.Fields[0].Mandatory)
	assert.True(t, res.Fields[0].NeedsReview)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewMandatoryLow)
	assert.NotContains(t, res.Fields[0].Reasons, domain.ReviewLowConfidence)
	assert.True(t, res.NeedsReview)
	assert.Contains(t, res.Reasons, domain.ReviewMandatoryLow)
}

func TestScore_ConfidentDocumentNotFlagged(t *testing.T) {
	s := newScorer(t)

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{
		field("totals.total_amount", domain.SemanticAmount, "99.90", 0.95),
		field("invoice.invoice_date", domain.SemanticDate, "2024-03-01", 0.95),
	})

	assert.InDelta(t, 0.98, res.Fields[0].Score, 1e-9)
	assert.False(t, res.NeedsReview)
	assert.Empty(t, res.Reasons)
}

func TestScore_MissingMandatoryField(t *testing.T) {
	s := newScorer(t)

	res := s.Score(domain.DocumentTypeReceipt, []domain.ExtractedField{
		field("merchant.name", domain.SemanticText, "Corner Shop", 1),
	})

	assert.True(t, res.NeedsReview)
	assert.Contains(t, res.Reasons, domain.ReviewMandatoryMissing)
}

func TestScore_GenericHasNoMandatoryFields(t *testing.T) {
	s := newScorer(t)

	res := s.Score(domain.DocumentTypeGeneric, []domain.ExtractedField{
		field("title", domain.SemanticText, "Notice", 1),
	})

	assert.NotContains(t, res.Reasons, domain.ReviewMandatoryMissing)
	assert.InDelta(t, 1.0, res.Document, 1e-9)
}

func TestScore_EmptyDocument(t *testing.T) {
	res := newScorer(t).Score(domain.DocumentTypeGeneric, nil)

	assert.Zero(t, res.Document)
	assert.True(t, res.NeedsReview)
	assert.Contains(t, res.Reasons, domain.ReviewDocumentLow)
}

func TestScore_ExtractionFailureIsZero(t *testing.T) {
	s := newScorer(t)
	f := field("totals.total_amount", domain.SemanticAmount, "", 0.9)
	f.Flag(domain.ReviewExtractionFailed)

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{f})

	assert.Zero(t, res.Fields[0].Score)
	assert.True(t, res.Fields[0].NeedsReview)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewExtractionFailed)
	assert.True(t, res.NeedsReview)
}

func TestScore_NormalizationFailure(t *testing.T) {
	s := newScorer(t)
	f := field("totals.total_amount", domain.SemanticAmount, "", 1)
	f.RawValue = "twelve"

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{f})

	// provider only: 0.4 * 1
	assert.InDelta(t, 0.4, res.Fields[0].Score, 1e-9)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewNormalizationFailed)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewLowConfidence)
}

func TestScore_MissingProviderConfidenceUsesFallback(t *testing.T) {
	s := newScorer(t)
	f := field("vendor.name", domain.SemanticText, "ACME", 0)
	f.ProviderConfidence = nil

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{f})

	assert.InDelta(t, 0.5, res.Fields[0].Provider, 1e-9)
	assert.InDelta(t, 0.65, res.Fields[0].Score, 1e-9)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewLowConfidence)
}

func TestScore_GuessedDateIsPenalized(t *testing.T) {
	s := newScorer(t)
	f := field("invoice.invoice_date", domain.SemanticDate, "2024-04-03", 1)
	f.Flag(domain.ReviewDateGuessed)

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{f})

	assert.InDelta(t, 0.6, res.Fields[0].Validity, 1e-9)
	assert.InDelta(t, 0.5, res.Fields[0].Consistency, 1e-9)
	assert.InDelta(t, 0.74, res.Fields[0].Score, 1e-9)
	assert.Contains(t, res.Fields[0].Reasons, domain.ReviewDateGuessed)
}

func TestScore_TypeSpecificValidity(t *testing.T) {
	s := newScorer(t)
	fields := []domain.ExtractedField{
		field("account.account_number", domain.SemanticAccountNumber, "XXXXXXXX1234", 1),
		field("account.card_number", domain.SemanticAccountNumber, "X234", 1),
		field("contact.email", domain.SemanticEmail, "billing@example.com", 1),
		field("contact.phone", domain.SemanticPhone, "5550100", 1),
		field("totals.currency", domain.SemanticCurrency, "USD", 1),
	}

	res := s.Score(domain.DocumentTypeGeneric, fields)

	assert.Equal(t, 1.0, res.Fields[0].Validity)
	assert.Equal(t, 0.5, res.Fields[1].Validity)
	assert.Equal(t, 1.0, res.Fields[2].Validity)
	assert.Equal(t, 0.5, res.Fields[3].Validity)
	assert.Equal(t, 1.0, res.Fields[4].Validity)
}

func TestScore_CurrencyMismatchWithDocument(t *testing.T) {
	s := newScorer(t)
	usd1 := field("totals.subtotal", domain.SemanticAmount, "10.00", 1)
	usd1.Currency = "USD"
	usd2 := field("totals.total_amount", domain.SemanticAmount, "12.00", 1)
	usd2.Currency = "USD"
	eur := field("totals.tax_amount", domain.SemanticAmount, "2.00", 1)
	eur.Currency = "EUR"

	res := s.Score(domain.DocumentTypeInvoice, []domain.ExtractedField{usd1, usd2, eur})

	assert.NotContains(t, res.Fields[0].Reasons, domain.ReviewCurrencyMismatch)
	assert.Contains(t, res.Fields[2].Reasons, domain.ReviewCurrencyMismatch)
	assert.InDelta(t, 0.4, res.Fields[2].Consistency, 1e-9)
}

func TestScore_TransactionDatesOutOfOrder(t *testing.T) {
	s := newScorer(t)
	fields := []domain.ExtractedField{
		rowField(0, "date", domain.SemanticDate, "2024-01-01", 1),
		rowField(1, "date", domain.SemanticDate, "2024-01-05", 1),
		rowField(2, "date", domain.SemanticDate, "2024-01-03", 1),
		rowField(3, "date", domain.SemanticDate, "2024-01-10", 1),
		rowField(2, "description", domain.SemanticText, "ATM", 1),
	}

	res := s.Score(domain.DocumentTypeBankStatement, fields)

	require.Len(t, res.Rows, 4)
	assert.Contains(t, res.Rows[2].Reasons, domain.ReviewOutOfOrder)
	assert.True(t, res.Rows[2].NeedsReview)
	assert.NotContains(t, res.Rows[1].Reasons, domain.ReviewOutOfOrder)
	assert.NotContains(t, res.Rows[3].Reasons, domain.ReviewOutOfOrder)
	assert.Len(t, res.Rows[2].Fields, 2)
}

func TestScore_NewestFirstStatementIsChronological(t *testing.T) {
	s := newScorer(t)
	fields := []domain.ExtractedField{
		rowField(0, "date", domain.SemanticDate, "2024-01-10", 1),
		rowField(1, "date", domain.SemanticDate, "2024-01-05", 1),
		rowField(2, "date", domain.SemanticDate, "2024-01-01", 1),
	}

	res := s.Score(domain.DocumentTypeBankStatement, fields)

	for row, rs := range res.Rows {
		assert.NotContains(t, rs.Reasons, domain.ReviewOutOfOrder, "row %d", row)
	}
}

func TestResult_Apply(t *testing.T) {
	s := newScorer(t)
	fields := []domain.ExtractedField{
		rowField(0, "date", domain.SemanticDate, "2024-01-01", 1),
		rowField(0, "debit", domain.SemanticAmount, "", 1),
		field("balances.closing_balance", domain.SemanticAmount, "5.00", 1),
	}
	txns := []domain.Transaction{{Position: 0}, {Position: 7}}

	res := s.Score(domain.DocumentTypeBankStatement, fields)
	res.Apply(fields, txns)

	assert.InDelta(t, 1.0, fields[0].Confidence, 1e-9)
	assert.False(t, fields[0].NeedsReview)
	assert.True(t, fields[1].NeedsReview)
	assert.Contains(t, []string(fields[1].ReviewReasons), domain.ReviewNormalizationFailed)
	assert.InDelta(t, 0.7, txns[0].Confidence, 1e-9)
	assert.True(t, txns[0].NeedsReview)
	assert.Contains(t, txns[0].FieldConfidence, "debit")
	assert.Zero(t, txns[1].Confidence)

	// applying twice does not duplicate reasons
	res.Apply(fields, txns)
	assert.Len(t, fields[1].ReviewReasons, len(res.Fields[1].Reasons))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := scoring.DefaultConfig()
	cfg.Default = scoring.Weights{Provider: 0.5, Validity: 0.5, Consistency: 0.5}
	_, err := scoring.New(cfg)
	assert.Error(t, err)

	cfg = scoring.DefaultConfig()
	cfg.ByCategory[domain.SemanticDate] = scoring.Weights{Provider: 1.2, Validity: -0.2}
	_, err = scoring.New(cfg)
	assert.Error(t, err)

	cfg = scoring.DefaultConfig()
	cfg.FieldThreshold = 1.5
	_, err = scoring.New(cfg)
	assert.Error(t, err)

	cfg = scoring.DefaultConfig()
	cfg.MandatoryWeight = 0.5
	_, err = scoring.New(cfg)
	assert.Error(t, err)
}

func TestNew_CopiesConfig(t *testing.T) {
	cfg := scoring.DefaultConfig()
	s, err := scoring.New(cfg)
	require.NoError(t, err)

	cfg.ByCategory[domain.SemanticText] = scoring.Weights{Provider: 1}
	cfg.MandatoryFields[domain.DocumentTypeInvoice][0] = "changed"

	got := s.Config()
	assert.Equal(t, scoring.Weights{Provider: 0.7, Validity: 0.2, Consistency: 0.1}, got.ByCategory[domain.SemanticText])
	assert.Equal(t, []string{"totals.total_amount"}, got.MandatoryFields[domain.DocumentTypeInvoice])
}
