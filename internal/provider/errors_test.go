package provider_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/provider"
)

func TestStatusError(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "12")

	err := provider.StatusError("claude", http.StatusTooManyRequests, []byte("slow down"), header)
	var uErr *provider.UnavailableError
	require.True(t, errors.As(err, &uErr))
	assert.True(t, uErr.RateLimited())
	assert.Equal(t, 12*time.Second, uErr.RetryAfter)
	assert.True(t, provider.IsTransient(err))

	err = provider.StatusError("claude", http.StatusBadGateway, nil, http.Header{})
	assert.True(t, provider.IsTransient(err))
	require.True(t, errors.As(err, &uErr))
	assert.False(t, uErr.RateLimited())

	err = provider.StatusError("claude", http.StatusRequestTimeout, nil, http.Header{})
	assert.True(t, provider.IsTransient(err))

	err = provider.StatusError("claude", http.StatusUnauthorized, []byte("bad key"), http.Header{})
	assert.False(t, provider.IsTransient(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestUnavailableError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := provider.NewUnavailableError("ollama", inner)

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ollama unavailable")
}

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	err := provider.NewRateLimitError("groq", errors.New("429"), 0)
	assert.Equal(t, 60*time.Second, err.RetryAfter)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, provider.ParseRetryAfterHeader(""))
	assert.Equal(t, 5, provider.ParseRetryAfterHeader("5"))
	assert.Equal(t, 0, provider.ParseRetryAfterHeader("Wed, 21 Oct 2015 07:28:00 GMT"))
}
