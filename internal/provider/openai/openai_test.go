package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/openai"
)

func chatResponse(text, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": text}, "finish_reason": finish},
		},
	}
}

func TestProvider_Extract_Image(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_completion_tokens"])

		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		block := msg["content"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "image_url", block["type"])
		url := block["image_url"].(map[string]interface{})["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))

		_ = json.NewEncoder(w).Encode(chatResponse(`{"merchant":{}}`, "stop"))
	}))
	defer server.Close()

	p := openai.NewWithEndpoint(&config.ProviderConfig{APIKey: "sk-test"}, server.URL)
	out, err := p.Extract(context.Background(), port.ProviderInput{
		FileBytes:   []byte{0xFF, 0xD8, 0xFF},
		ContentType: "image/jpeg",
		Prompt:      "extract",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"merchant":{}}`, out.Text)
	assert.Equal(t, "openai", out.Provider)
}

func TestProvider_GroqUsesBaseURLAndName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(`{"document_type":"invoice"}`, "stop"))
	}))
	defer server.Close()

	p := openai.NewGroq(&config.ProviderConfig{APIKey: "gsk", BaseURL: server.URL})
	out, err := p.Classify(context.Background(), port.ProviderInput{
		FileBytes: []byte("x"), ContentType: "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, "groq", out.Provider)
}

func TestProvider_TruncatedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(`{"a":`, "length"))
	}))
	defer server.Close()

	p := openai.NewWithEndpoint(&config.ProviderConfig{}, server.URL)
	_, err := p.Extract(context.Background(), port.ProviderInput{FileBytes: []byte("x"), ContentType: "application/pdf"})

	assert.ErrorIs(t, err, domain.ErrProviderMalformedOutput)
}

func TestProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := openai.NewWithEndpoint(&config.ProviderConfig{}, server.URL)
	_, err := p.Extract(context.Background(), port.ProviderInput{FileBytes: []byte("x"), ContentType: "application/pdf"})

	assert.True(t, provider.IsTransient(err))
}
