package domain_test

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
)

func TestParseDocumentType(t *testing.T) {
	tests := []struct {
		label string
		want  domain.DocumentType
		ok    bool
	}{
		{"bank_statement", domain.DocumentTypeBankStatement, true},
		{"Bank Statement", domain.DocumentTypeBankStatement, true},
		{"bank-statement", domain.DocumentTypeBankStatement, true},
		{" statement. ", domain.DocumentTypeBankStatement, true},
		{"INVOICE", domain.DocumentTypeInvoice, true},
		{"bill", domain.DocumentTypeInvoice, true},
		{"\"receipt\"", domain.DocumentTypeReceipt, true},
		{"other", domain.DocumentTypeGeneric, true},
		{"passport", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := domain.ParseDocumentType(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelineStatus_Transitions(t *testing.T) {
	path := []domain.PipelineStatus{
		domain.StatusPending,
		domain.StatusClassifying,
		domain.StatusExtracting,
		domain.StatusNormalizing,
		domain.StatusScoring,
		domain.StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])
		assert.True(t, path[i].CanTransitionTo(domain.StatusFailed), "%s -> failed", path[i])
		next, ok := path[i].Next()
		require.True(t, ok)
		assert.Equal(t, path[i+1], next)
	}

	assert.False(t, domain.StatusPending.CanTransitionTo(domain.StatusExtracting))
	assert.False(t, domain.StatusScoring.CanTransitionTo(domain.StatusClassifying))
	assert.False(t, domain.StatusCompleted.CanTransitionTo(domain.StatusFailed))
	assert.False(t, domain.StatusFailed.CanTransitionTo(domain.StatusPending))

	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusFailed.IsTerminal())
	assert.False(t, domain.StatusScoring.IsTerminal())

	_, ok := domain.StatusCompleted.Next()
	assert.False(t, ok)
}

func TestStage_Status(t *testing.T) {
	want := []domain.PipelineStatus{
		domain.StatusClassifying,
		domain.StatusExtracting,
		domain.StatusNormalizing,
		domain.StatusScoring,
	}
	for i, s := range domain.Stages {
		assert.Equal(t, want[i], s.Status())
	}
}

func TestDocument_LeaseHeldBy(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	owner := "worker-1"
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	doc := domain.Document{LeaseOwner: &owner, LeaseExpiresAt: &later}
	assert.True(t, doc.LeaseHeldBy("worker-1", now))
	assert.False(t, doc.LeaseHeldBy("worker-2", now))

	doc.LeaseExpiresAt = &earlier
	assert.False(t, doc.LeaseHeldBy("worker-1", now))

	assert.False(t, (&domain.Document{}).LeaseHeldBy("worker-1", now))
}

func TestDocument_TypeOrGeneric(t *testing.T) {
	doc := domain.Document{}
	assert.Equal(t, domain.DocumentTypeGeneric, doc.TypeOrGeneric())

	inv := domain.DocumentTypeInvoice
	doc.DocumentType = &inv
	assert.Equal(t, domain.DocumentTypeInvoice, doc.TypeOrGeneric())
}

func TestExtractedField_Flags(t *testing.T) {
	var f domain.ExtractedField
	assert.False(t, f.HasReason(domain.ReviewLowConfidence))

	f.Flag(domain.ReviewLowConfidence)
	assert.True(t, f.NeedsReview)
	assert.True(t, f.HasReason(domain.ReviewLowConfidence))

	assert.Equal(t, "", f.DisplayValue())
	f.RawValue = "1,00"
	assert.Equal(t, "1,00", f.DisplayValue())
	v := "1.00"
	f.NormalizedValue = &v
	assert.Equal(t, "1.00", f.DisplayValue())
}

func TestJSONColumns(t *testing.T) {
	var nilStrings domain.JSONStrings
	v, err := nilStrings.Value()
	require.NoError(t, err)
	assert.Equal(t, driver.Value([]byte("[]")), v)

	var s domain.JSONStrings
	require.NoError(t, s.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, domain.JSONStrings{"a", "b"}, s)

	var m domain.JSONFloatMap
	require.NoError(t, m.Scan(`{"debit":0.5}`))
	assert.Equal(t, 0.5, m["debit"])

	var f domain.JSONFloats
	require.NoError(t, f.Scan(nil))
	assert.Nil(t, f)

	assert.Error(t, s.Scan(42))
}

func TestParsePipelineStatus(t *testing.T) {
	for _, s := range []string{"pending", "Scoring", " failed ", "COMPLETED"} {
		_, ok := domain.ParsePipelineStatus(s)
		assert.True(t, ok, s)
	}
	got, ok := domain.ParsePipelineStatus("Extracting")
	assert.True(t, ok)
	assert.Equal(t, domain.StatusExtracting, got)

	_, ok = domain.ParsePipelineStatus("queued")
	assert.False(t, ok)
}
