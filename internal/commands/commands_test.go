package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/commands"
	"ledgerscan/internal/config"
	"ledgerscan/internal/export"
	"ledgerscan/internal/port"
	"ledgerscan/internal/service"
	"ledgerscan/mocks"
)

const invoiceAnswer = `{"totals": {"total_amount": {"value": "€99,00", "confidence": 0.9}}}`

func execute(t *testing.T, provider port.ExtractionProvider, args ...string) (string, error) {
	t.Helper()
	deps := commands.Deps{
		LoadConfig: func() (*config.Config, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			cfg.Pipeline.BackoffBase = 0
			cfg.Pipeline.BackoffMax = 0
			return cfg, nil
		},
		NewProvider: func(*config.ProvidersConfig) (port.ExtractionProvider, error) {
			return provider, nil
		},
	}
	cmd := commands.NewRootCommand(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o600))
	return path
}

func TestRun_PrintsJSONExport(t *testing.T) {
	provider := new(mocks.MockExtractionProvider)
	provider.On("Name").Return("mock").Maybe()
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.ProviderOutput{Text: invoiceAnswer, Provider: "mock", Model: "mock-1"}, nil)

	out, err := execute(t, provider, "run", writePDF(t), "--hint", "invoice", "--dir", t.TempDir())
	require.NoError(t, err)

	var e export.Export
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "invoice.pdf", e.Header.Filename)
	assert.Equal(t, "invoice", e.Header.DocumentType)
	assert.Equal(t, "completed", e.Header.Status)
	require.NotEmpty(t, e.Fields)
	provider.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestRun_WritesCSVFile(t *testing.T) {
	provider := new(mocks.MockExtractionProvider)
	provider.On("Name").Return("mock").Maybe()
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.ProviderOutput{Text: invoiceAnswer, Provider: "mock"}, nil)

	target := filepath.Join(t.TempDir(), "out.csv")
	out, err := execute(t, provider, "run", writePDF(t), "--hint", "invoice", "-f", "csv", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(data), "total_amount")
}

func TestRun_FailedDocument(t *testing.T) {
	provider := new(mocks.MockExtractionProvider)
	provider.On("Name").Return("mock").Maybe()
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(nil, errors.New("mock API error (status 400): bad request"))

	_, err := execute(t, provider, "run", writePDF(t), "--hint", "invoice")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "document failed"), err.Error())
}

func TestRun_RejectsUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	_, err := execute(t, new(mocks.MockExtractionProvider), "run", path)
	assert.Error(t, err)
}

func TestRun_UnknownFormat(t *testing.T) {
	provider := new(mocks.MockExtractionProvider)
	provider.On("Name").Return("mock").Maybe()
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(&port.ProviderOutput{Text: invoiceAnswer, Provider: "mock"}, nil)

	_, err := execute(t, provider, "run", writePDF(t), "--hint", "invoice", "-f", "pdf")
	assert.ErrorContains(t, err, "unknown format")
}

func TestArgumentValidation(t *testing.T) {
	_, err := execute(t, nil, "process", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid document id")

	_, err = execute(t, nil, "export", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid document id")

	_, err = execute(t, nil, "reprocess", "--status", "archived")
	assert.ErrorContains(t, err, "unknown status")

	_, err = execute(t, nil, "ingest")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv("LEDGERSCAN_JWT_SECRET", "s3cret")

	out, err := execute(t, nil, "token", "--subject", "ops@example.com", "--ttl", "1h")
	require.NoError(t, err)

	var issued service.IssuedToken
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	claims, err := service.NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "ledgerscan"}).Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestToken_RequiresSecret(t *testing.T) {
	_, err := execute(t, nil, "token", "--subject", "ops")
	assert.Error(t, err)
}
