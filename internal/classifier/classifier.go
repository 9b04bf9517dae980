// Package classifier assigns one of the closed set of document types to an
// uploaded file.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/prompt"
)

const answerSchema = `{
  "type": "object",
  "properties": {
    "document_type": {"type": "string", "minLength": 1},
    "confidence": {"type": ["number", "null"]},
    "reasoning": {"type": ["string", "null"]}
  },
  "required": ["document_type"]
}`

var schema = jsonschema.MustCompileString("classification.json", answerSchema)

// Input is one file to classify. A Hint naming a known document type skips
// the provider call.
type Input struct {
	Data        []byte
	ContentType string
	Hint        string
}

// Classification is the classifier's answer.
type Classification struct {
	Type       domain.DocumentType
	Confidence float64
	Reasoning  string
	Model      string
	Provider   string
	FromHint   bool
}

// Classifier maps provider answers onto domain.DocumentType.
type Classifier struct {
	provider           port.ExtractionProvider
	fallbackConfidence float64
}

// New creates a Classifier. fallbackConfidence is used when the provider
// names a type without a usable confidence.
func New(p port.ExtractionProvider, fallbackConfidence float64) *Classifier {
	return &Classifier{provider: p, fallbackConfidence: clamp(fallbackConfidence)}
}

type answer struct {
	DocumentType string   `json:"document_type"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
}

// Classify asks the provider for the document type. Provider errors are
// returned wrapped; an answer that cannot be read becomes generic.
func (c *Classifier) Classify(ctx context.Context, in Input) (*Classification, error) {
	if in.Hint != "" {
		if t, ok := domain.ParseDocumentType(in.Hint); ok {
			return &Classification{Type: t, Confidence: 1.0, Reasoning: "caller hint", FromHint: true}, nil
		}
		slog.WarnContext(ctx, "classifier.Classify: ignoring unknown hint", "hint", in.Hint)
	}

	out, err := c.provider.Classify(ctx, port.ProviderInput{
		FileBytes:   in.Data,
		ContentType: in.ContentType,
		Prompt:      prompt.Classification(),
	})
	if err != nil {
		return nil, fmt.Errorf("classifier.Classify: %w", err)
	}

	result := c.parse(ctx, out.Text)
	result.Model = out.Model
	result.Provider = out.Provider
	return result, nil
}

func (c *Classifier) parse(ctx context.Context, text string) *Classification {
	generic := &Classification{Type: domain.DocumentTypeGeneric, Confidence: c.fallbackConfidence}

	raw, err := provider.ExtractJSON(text)
	if err != nil {
		// Some models answer with the bare label.
		if t, ok := domain.ParseDocumentType(text); ok {
			return &Classification{Type: t, Confidence: c.fallbackConfidence}
		}
		slog.WarnContext(ctx, "classifier.Classify: unreadable answer, using generic", "error", err)
		return generic
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.WarnContext(ctx, "classifier.Classify: invalid JSON, using generic", "error", err)
		return generic
	}
	if err := schema.Validate(doc); err != nil {
		slog.WarnContext(ctx, "classifier.Classify: answer does not match schema, using generic", "error", err)
		return generic
	}

	var a answer
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return generic
	}

	t, ok := domain.ParseDocumentType(a.DocumentType)
	if !ok {
		slog.InfoContext(ctx, "classifier.Classify: unknown label, using generic", "label", a.DocumentType)
		generic.Reasoning = strings.TrimSpace(a.Reasoning)
		return generic
	}

	conf := c.fallbackConfidence
	if a.Confidence != nil {
		conf = clamp(*a.Confidence)
	}
	return &Classification{Type: t, Confidence: conf, Reasoning: strings.TrimSpace(a.Reasoning)}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
