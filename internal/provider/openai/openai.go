package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
)

const (
	apiURL  = "https://api.openai.com/v1/chat/completions"
	groqURL = "https://api.groq.com/openai/v1/chat/completions"

	classifyMaxTokens = 1024
	extractMaxTokens  = 16384
)

// Provider implements port.ExtractionProvider against any OpenAI-compatible
// Chat Completions API (OpenAI, Groq).
type Provider struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// New creates an OpenAI provider from a provider config.
func New(cfg *config.ProviderConfig) *Provider {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}
	return newProvider(cfg, "openai", endpoint, "gpt-4o")
}

// NewGroq creates a provider for Groq's OpenAI-compatible endpoint.
func NewGroq(cfg *config.ProviderConfig) *Provider {
	endpoint := groqURL
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}
	return newProvider(cfg, "groq", endpoint, "meta-llama/llama-4-scout-17b-16e-instruct")
}

// NewWithEndpoint creates a provider pointing at a custom API endpoint (for testing).
func NewWithEndpoint(cfg *config.ProviderConfig, endpoint string) *Provider {
	return newProvider(cfg, "openai", endpoint, "gpt-4o")
}

func newProvider(cfg *config.ProviderConfig, name, endpoint, defaultModel string) *Provider {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		name:     name,
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Classify(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input, classifyMaxTokens)
}

func (p *Provider) Extract(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input, extractMaxTokens)
}

func (p *Provider) generate(ctx context.Context, input port.ProviderInput, maxTokens int) (*port.ProviderOutput, error) {
	contentBlocks, err := buildContentBlocks(input)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":                 p.model,
		"max_completion_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.NewUnavailableError(p.name, fmt.Errorf("calling %s API: %w", p.name, err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewUnavailableError(p.name, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.StatusError(p.name, resp.StatusCode, respBody, resp.Header)
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	return &port.ProviderOutput{Text: text, Model: p.model, Provider: p.name}, nil
}

func buildContentBlocks(input port.ProviderInput) ([]map[string]interface{}, error) {
	encoded := base64.StdEncoding.EncodeToString(input.FileBytes)
	var blocks []map[string]interface{}

	switch input.ContentType {
	case "application/pdf":
		dataURI := fmt.Sprintf("data:%s;base64,%s", input.ContentType, encoded)
		blocks = append(blocks, map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{
				"filename":  "document.pdf",
				"file_data": dataURI,
			},
		})
	case "image/jpeg", "image/png":
		dataURI := fmt.Sprintf("data:%s;base64,%s", input.ContentType, encoded)
		blocks = append(blocks, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": dataURI,
			},
		})
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, input.ContentType)
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": input.Prompt,
	})

	return blocks, nil
}

// apiResponse models the Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: unmarshaling response: %v", domain.ErrProviderMalformedOutput, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from API: no choices", domain.ErrProviderMalformedOutput)
	}

	if resp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("%w: output truncated (finish_reason: length)", domain.ErrProviderMalformedOutput)
	}

	return resp.Choices[0].Message.Content, nil
}
