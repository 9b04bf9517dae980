package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/claude"
)

func newTestProvider(serverURL string) *claude.Provider {
	cfg := &config.ProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewWithEndpoint(cfg, serverURL)
}

func TestProvider_Extract_PDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_tokens"])

		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		content := msg["content"].([]interface{})
		require.Len(t, content, 2)
		assert.Equal(t, "document", content[0].(map[string]interface{})["type"])
		textBlock := content[1].(map[string]interface{})
		assert.Equal(t, "extract please", textBlock["text"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": `{"totals":{}}`}},
		})
	}))
	defer server.Close()

	out, err := newTestProvider(server.URL).Extract(context.Background(), port.ProviderInput{
		FileBytes:   []byte("%PDF-1.4"),
		ContentType: "application/pdf",
		Prompt:      "extract please",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"totals":{}}`, out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.Model)
	assert.Equal(t, "claude", out.Provider)
}

func TestProvider_Classify_ImageUsesSmallBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, float64(1024), reqBody["max_tokens"])
		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		block := msg["content"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "image", block["type"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": `{"document_type":"receipt"}`}},
		})
	}))
	defer server.Close()

	out, err := newTestProvider(server.URL).Classify(context.Background(), port.ProviderInput{
		FileBytes:   []byte{0x89, 'P', 'N', 'G'},
		ContentType: "image/png",
		Prompt:      "classify",
	})

	require.NoError(t, err)
	assert.Contains(t, out.Text, "receipt")
}

func TestProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit"}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Extract(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	var uErr *provider.UnavailableError
	require.True(t, errors.As(err, &uErr))
	assert.Equal(t, 30*time.Second, uErr.RetryAfter)
}

func TestProvider_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Extract(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "application/pdf",
	})

	assert.True(t, provider.IsTransient(err))
}

func TestProvider_BadRequestIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Extract(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.False(t, provider.IsTransient(err))
}

func TestProvider_TruncatedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": `{"totals":`}},
			"stop_reason": "max_tokens",
		})
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Extract(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "application/pdf",
	})

	assert.ErrorIs(t, err, domain.ErrProviderMalformedOutput)
}

func TestProvider_UnsupportedContentType(t *testing.T) {
	_, err := newTestProvider("http://unused").Extract(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "text/plain",
	})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}
