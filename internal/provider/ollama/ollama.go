package ollama

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

const defaultBaseURL = "http://localhost:11434"

// Provider implements port.ExtractionProvider against a local Ollama server.
// Vision models served by Ollama read images only, so a scanned PDF is sent
// as its embedded page images.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an Ollama provider from a provider config.
func New(cfg *config.ProviderConfig) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "llava"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &Provider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
}

type message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatResponse struct {
	Message    message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason"`
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Classify(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input)
}

func (p *Provider) Extract(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input)
}

func (p *Provider) generate(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	images, err := p.images(input)
	if err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Model:  p.model,
		Stream: false,
		Format: "json",
		Messages: []message{
			{
				Role:    "system",
				Content: "You read scanned financial documents and answer with JSON only.",
			},
			{
				Role:    "user",
				Content: input.Prompt,
				Images:  images,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.NewUnavailableError(p.Name(), fmt.Errorf("calling ollama API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, provider.StatusError(p.Name(), resp.StatusCode, body, resp.Header)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrProviderMalformedOutput, err)
	}
	if chatResp.DoneReason == "length" {
		return nil, fmt.Errorf("%w: output truncated", domain.ErrProviderMalformedOutput)
	}

	return &port.ProviderOutput{Text: chatResp.Message.Content, Model: p.model, Provider: p.Name()}, nil
}

// images encodes the input as base64 images for the chat request.
func (p *Provider) images(input port.ProviderInput) ([]string, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png":
		return []string{base64.StdEncoding.EncodeToString(input.FileBytes)}, nil
	case "application/pdf":
		pages, err := pageImages(input.FileBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: ollama: %v", domain.ErrUnsupportedFileType, err)
		}
		if len(pages) == 0 {
			return nil, fmt.Errorf("%w: ollama: pdf has no page images", domain.ErrUnsupportedFileType)
		}
		encoded := make([]string, len(pages))
		for i, b := range pages {
			encoded[i] = base64.StdEncoding.EncodeToString(b)
		}
		return encoded, nil
	default:
		return nil, fmt.Errorf("%w: ollama cannot read %s", domain.ErrUnsupportedFileType, input.ContentType)
	}
}
