package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
)

const defaultModel = "gemini-2.0-flash"

// Generator is the subset of *genai.GenerativeModel the provider calls.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Provider implements port.ExtractionProvider using the Gemini SDK.
type Provider struct {
	client *genai.Client
	model  string
	gen    Generator
}

// New creates a Gemini provider from a provider config.
func New(ctx context.Context, cfg *config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	modelName := cfg.DefaultModel
	if modelName == "" {
		modelName = defaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(16384)

	return &Provider{client: client, model: modelName, gen: model}, nil
}

// NewWithGenerator creates a provider around an existing generator (for testing).
func NewWithGenerator(model string, gen Generator) *Provider {
	return &Provider{model: model, gen: gen}
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Classify(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input)
}

func (p *Provider) Extract(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return p.generate(ctx, input)
}

func (p *Provider) generate(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	var filePart genai.Part
	switch input.ContentType {
	case "application/pdf":
		filePart = genai.Blob{MIMEType: "application/pdf", Data: input.FileBytes}
	case "image/jpeg":
		filePart = genai.ImageData("jpeg", input.FileBytes)
	case "image/png":
		filePart = genai.ImageData("png", input.FileBytes)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, input.ContentType)
	}

	resp, err := p.gen.GenerateContent(ctx, filePart, genai.Text(input.Prompt))
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no response from gemini", domain.ErrProviderMalformedOutput)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return nil, fmt.Errorf("%w: output truncated (finish reason: max tokens)", domain.ErrProviderMalformedOutput)
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return &port.ProviderOutput{Text: text.String(), Model: p.model, Provider: p.Name()}, nil
}

func classifyError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusTooManyRequests:
			return provider.NewRateLimitError("gemini", err, provider.ParseRetryAfterHeader(gErr.Header.Get("Retry-After")))
		case gErr.Code >= 500:
			return provider.NewUnavailableError("gemini", err)
		default:
			return fmt.Errorf("gemini API error: %w", err)
		}
	}
	return provider.NewUnavailableError("gemini", fmt.Errorf("generating content: %w", err))
}

// Close closes the underlying client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
