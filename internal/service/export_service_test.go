package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/repository/memory"
	"ledgerscan/internal/service"
)

// completedDocument walks a fresh document through every status.
func completedDocument(t *testing.T, store *memory.Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	doc := &domain.Document{Filename: "march.pdf", ContentType: "application/pdf", StoragePath: "2024/03/31/march.pdf"}
	require.NoError(t, store.Create(ctx, doc))
	_, err := store.Claim(ctx, doc.ID, "w", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.UpdateClassification(ctx, doc.ID, domain.DocumentTypeBankStatement, 0.9, "m"))
	status := domain.StatusPending
	for {
		next, ok := status.Next()
		if !ok || next == domain.StatusCompleted {
			break
		}
		require.NoError(t, store.UpdateStatus(ctx, doc.ID, status, next))
		status = next
	}
	normalized := "120.00"
	require.NoError(t, store.Fields().ReplaceFields(ctx, doc.ID, []domain.ExtractedField{
		{Name: "balances.closing_balance", Group: "balances", RawValue: "120", NormalizedValue: &normalized, Confidence: 0.9},
	}))
	conf := 0.9
	require.NoError(t, store.Complete(ctx, &domain.Document{ID: doc.ID, OverallConfidence: &conf}))
	return doc.ID
}

func TestExportService_Rows(t *testing.T) {
	store := memory.New()
	svc := service.NewExportService(store, store.Fields(), store.Logs())
	id := completedDocument(t, store)

	e, err := svc.Rows(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id.String(), e.Header.DocumentID)
	assert.Equal(t, "bank_statement", e.Header.DocumentType)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "120.00", e.Fields[0].Value)
	assert.Empty(t, e.Transactions)
}

func TestExportService_Rows_RequiresCompleted(t *testing.T) {
	store := memory.New()
	svc := service.NewExportService(store, store.Fields(), store.Logs())
	doc := &domain.Document{Filename: "a.pdf"}
	require.NoError(t, store.Create(context.Background(), doc))

	_, err := svc.Rows(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotCompleted)

	_, err = svc.Rows(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestExportService_ListLogsAndLastError(t *testing.T) {
	store := memory.New()
	svc := service.NewExportService(store, store.Fields(), store.Logs())
	ctx := context.Background()
	doc := &domain.Document{Filename: "a.pdf"}
	require.NoError(t, store.Create(ctx, doc))

	detail := "classifier.Classify: mock unavailable: 503\n" + strings.Repeat("body ", 100)
	for _, e := range []domain.ProcessingLogEntry{
		{DocumentID: doc.ID, Stage: domain.StageClassify, Outcome: domain.OutcomeStarted, Attempt: 1},
		{DocumentID: doc.ID, Stage: domain.StageClassify, Outcome: domain.OutcomeFailure, Attempt: 1, ErrorDetail: &detail},
	} {
		entry := e
		require.NoError(t, store.Logs().Append(ctx, &entry))
	}

	entries, err := svc.ListLogs(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	last, err := svc.LastError(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "classifier.Classify: mock unavailable: 503", last)

	_, err = svc.ListLogs(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestExportService_LastError_Truncates(t *testing.T) {
	store := memory.New()
	svc := service.NewExportService(store, store.Fields(), store.Logs())
	ctx := context.Background()
	id := uuid.New()

	long := strings.Repeat("x", 500)
	require.NoError(t, store.Logs().Append(ctx, &domain.ProcessingLogEntry{
		DocumentID: id, Stage: domain.StageExtract, Outcome: domain.OutcomeFailure, Attempt: 3, ErrorDetail: &long,
	}))

	last, err := svc.LastError(ctx, id)
	require.NoError(t, err)
	assert.Len(t, last, 203)
	assert.True(t, strings.HasSuffix(last, "..."))

	none, err := svc.LastError(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
