package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ledgerscan/internal/domain"
)

// UnavailableError indicates a provider could not serve a request right now:
// rate limiting, a 5xx answer, a timeout or a transport failure. It unwraps
// to domain.ErrProviderUnavailable and to the underlying error.
type UnavailableError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *UnavailableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s unavailable (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{domain.ErrProviderUnavailable, e.Err}
}

// RateLimited reports whether the provider asked callers to back off.
func (e *UnavailableError) RateLimited() bool {
	return e.RetryAfter > 0
}

// NewRateLimitError creates an UnavailableError for an HTTP 429. If
// retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *UnavailableError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &UnavailableError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// NewUnavailableError creates an UnavailableError without a back-off hint.
func NewUnavailableError(provider string, err error) *UnavailableError {
	return &UnavailableError{Err: err, Provider: provider}
}

// StatusError maps a non-200 HTTP answer onto the error taxonomy. 429, 408
// and 5xx are transient; everything else is returned as a plain error.
func StatusError(provider string, status int, body []byte, header http.Header) error {
	baseErr := fmt.Errorf("%s API error (status %d): %s", provider, status, truncate(string(body), 500))
	switch {
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(provider, baseErr, ParseRetryAfterHeader(header.Get("Retry-After")))
	case status == http.StatusRequestTimeout || status >= 500:
		return NewUnavailableError(provider, baseErr)
	default:
		return baseErr
	}
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrProviderUnavailable)
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
