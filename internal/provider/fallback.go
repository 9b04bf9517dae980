package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ledgerscan/internal/port"
)

var errCircuitOpen = errors.New("circuit open")

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackProvider tries providers in order, skipping those whose circuit is
// open after a rate-limit answer. It implements port.ExtractionProvider.
type FallbackProvider struct {
	providers []port.ExtractionProvider
	circuits  []*circuitState
	now       func() time.Time
}

// NewFallbackProvider creates a FallbackProvider from an ordered provider list.
func NewFallbackProvider(providers []port.ExtractionProvider) *FallbackProvider {
	circuits := make([]*circuitState, len(providers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackProvider{
		providers: providers,
		circuits:  circuits,
		now:       time.Now,
	}
}

// Name lists the chained providers.
func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *FallbackProvider) Classify(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return f.try(ctx, "Classify", func(p port.ExtractionProvider) (*port.ProviderOutput, error) {
		return p.Classify(ctx, input)
	})
}

func (f *FallbackProvider) Extract(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	return f.try(ctx, "Extract", func(p port.ExtractionProvider) (*port.ProviderOutput, error) {
		return p.Extract(ctx, input)
	})
}

func (f *FallbackProvider) try(ctx context.Context, op string, call func(port.ExtractionProvider) (*port.ProviderOutput, error)) (*port.ProviderOutput, error) {
	now := f.now()
	var errs []error
	allRateLimited := true
	var earliestReset time.Time

	for i, p := range f.providers {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			slog.DebugContext(ctx, "provider.FallbackProvider: skipping provider, circuit open",
				"provider", p.Name(), "until", resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			errs = append(errs, &UnavailableError{
				Err:        errCircuitOpen,
				RetryAfter: resetAt.Sub(now),
				Provider:   p.Name(),
			})
			continue
		}

		out, err := call(p)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, NewUnavailableError(p.Name(), ctx.Err())
		}

		slog.WarnContext(ctx, "provider.FallbackProvider: provider failed",
			"op", op, "provider", p.Name(), "error", err)
		errs = append(errs, err)

		var uErr *UnavailableError
		if errors.As(err, &uErr) && uErr.RateLimited() {
			resetAt := now.Add(uErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if len(errs) == 0 || allRateLimited {
		retryAfter := earliestReset.Sub(f.now())
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds()))
	}

	// IsTransient holds if any provider failed transiently.
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
