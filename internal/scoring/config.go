package scoring

import (
	"errors"
	"fmt"
	"math"

	"ledgerscan/internal/domain"
)

// Weights blends the three confidence signals for one field category.
type Weights struct {
	Provider    float64
	Validity    float64
	Consistency float64
}

// Validate checks the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Provider < 0 || w.Validity < 0 || w.Consistency < 0 {
		return errors.New("weights must be non-negative")
	}
	if sum := w.Provider + w.Validity + w.Consistency; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights sum to %.6f, want 1", sum)
	}
	return nil
}

// Config holds the scoring constants. It is copied into the Scorer at
// construction and never mutated afterwards.
type Config struct {
	Default    Weights
	ByCategory map[domain.SemanticType]Weights

	FieldThreshold     float64
	DocumentThreshold  float64
	MandatoryThreshold float64

	// MandatoryWeight is the importance of a mandatory field relative to an
	// ordinary field (weight 1) in the document score.
	MandatoryWeight float64

	MissingProviderConfidence float64

	MandatoryFields map[domain.DocumentType][]string
}

// DefaultConfig returns the scoring constants used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Default: Weights{Provider: 0.5, Validity: 0.3, Consistency: 0.2},
		ByCategory: map[domain.SemanticType]Weights{
			domain.SemanticDate:          {Provider: 0.4, Validity: 0.4, Consistency: 0.2},
			domain.SemanticAmount:        {Provider: 0.4, Validity: 0.4, Consistency: 0.2},
			domain.SemanticAccountNumber: {Provider: 0.4, Validity: 0.5, Consistency: 0.1},
			domain.SemanticText:          {Provider: 0.7, Validity: 0.2, Consistency: 0.1},
		},
		FieldThreshold:            0.70,
		DocumentThreshold:         0.75,
		MandatoryThreshold:        0.85,
		MandatoryWeight:           3,
		MissingProviderConfidence: 0.5,
		MandatoryFields: map[domain.DocumentType][]string{
			domain.DocumentTypeBankStatement: {"balances.closing_balance"},
			domain.DocumentTypeInvoice:       {"totals.total_amount"},
			domain.DocumentTypeReceipt:       {"totals.total_amount"},
		},
	}
}

// Validate reports the first invalid constant.
func (c Config) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return fmt.Errorf("default weights: %w", err)
	}
	for t, w := range c.ByCategory {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%s weights: %w", t, err)
		}
	}
	for name, v := range map[string]float64{
		"field threshold":             c.FieldThreshold,
		"document threshold":          c.DocumentThreshold,
		"mandatory threshold":         c.MandatoryThreshold,
		"missing provider confidence": c.MissingProviderConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %.3f outside [0,1]", name, v)
		}
	}
	if c.MandatoryWeight < 1 {
		return fmt.Errorf("mandatory weight %.3f must be at least 1", c.MandatoryWeight)
	}
	return nil
}

func (c Config) clone() Config {
	cp := c
	cp.ByCategory = make(map[domain.SemanticType]Weights, len(c.ByCategory))
	for k, v := range c.ByCategory {
		cp.ByCategory[k] = v
	}
	cp.MandatoryFields = make(map[domain.DocumentType][]string, len(c.MandatoryFields))
	for k, v := range c.MandatoryFields {
		cp.MandatoryFields[k] = append([]string(nil), v...)
	}
	return cp
}

func (c Config) weightsFor(t domain.SemanticType) Weights {
	if w, ok := c.ByCategory[t]; ok {
		return w
	}
	return c.Default
}
