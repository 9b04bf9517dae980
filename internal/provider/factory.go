package provider

import (
	"fmt"
	"sort"

	"ledgerscan/internal/config"
	"ledgerscan/internal/port"
)

// Factory creates an ExtractionProvider from a provider config.
type Factory func(cfg *config.ProviderConfig) (port.ExtractionProvider, error)

// registry of provider factories, populated explicitly via Register at
// startup.
var providers = map[string]Factory{}

// Register registers a provider factory by name.
func Register(name string, factory Factory) {
	providers[name] = factory
}

// Registered lists the registered provider names.
func Registered() []string {
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates an ExtractionProvider from a provider config using the registered factory.
func New(cfg *config.ProviderConfig) (port.ExtractionProvider, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewChain builds every configured provider and wraps them in a
// FallbackProvider when more than one is configured.
func NewChain(cfgs []*config.ProviderConfig) (port.ExtractionProvider, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	built := make([]port.ExtractionProvider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("creating %s provider: %w", c.Provider, err)
		}
		built = append(built, p)
	}
	if len(built) == 1 {
		return built[0], nil
	}
	return NewFallbackProvider(built), nil
}
