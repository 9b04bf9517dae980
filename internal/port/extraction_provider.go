package port

import (
	"context"

	"ledgerscan/internal/domain"
)

// ProviderInput carries one request to a vision-language model backend.
type ProviderInput struct {
	FileBytes    []byte
	ContentType  string
	Prompt       string
	DocumentType domain.DocumentType
}

// ProviderOutput is the raw model answer. Text is decoded by the caller.
type ProviderOutput struct {
	Text     string
	Model    string
	Provider string
}

// ExtractionProvider abstracts a model backend that can classify a document
// and extract structured data from it. Implementations return errors
// wrapping domain.ErrProviderUnavailable for transient failures.
type ExtractionProvider interface {
	Name() string
	Classify(ctx context.Context, input ProviderInput) (*ProviderOutput, error)
	Extract(ctx context.Context, input ProviderInput) (*ProviderOutput, error)
}
