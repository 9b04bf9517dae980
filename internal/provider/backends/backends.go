// Package backends registers every built-in extraction provider with the
// provider registry.
package backends

import (
	"context"

	"ledgerscan/internal/config"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/claude"
	"ledgerscan/internal/provider/gemini"
	"ledgerscan/internal/provider/ollama"
	"ledgerscan/internal/provider/openai"
)

// Register adds claude, openai, groq, gemini and ollama to the registry.
// Call once at startup before building a provider chain.
func Register() {
	provider.Register("claude", func(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
		return claude.New(cfg), nil
	})
	provider.Register("openai", func(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
		return openai.New(cfg), nil
	})
	provider.Register("groq", func(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
		return openai.NewGroq(cfg), nil
	})
	provider.Register("gemini", func(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
		return gemini.New(context.Background(), cfg)
	})
	provider.Register("ollama", func(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
		return ollama.New(cfg), nil
	})
}
