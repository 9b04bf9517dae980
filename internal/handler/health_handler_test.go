package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/handler"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler(fakePinger{err: errors.New("down")})
	c, w := newContext(http.MethodGet, "/healthz", nil, nil)

	h.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	c, w := newContext(http.MethodGet, "/readyz", nil, nil)
	handler.NewHealthHandler(fakePinger{}).Readiness(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodGet, "/readyz", nil, nil)
	handler.NewHealthHandler(fakePinger{err: errors.New("connection refused")}).Readiness(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp handler.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestMapDomainError_WrappedErrors(t *testing.T) {
	status, code, _ := handler.MapDomainError(fmt.Errorf("gateway.Store: %w", domain.ErrStorage))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "STORAGE_ERROR", code)

	status, code, _ = handler.MapDomainError(fmt.Errorf("pipeline: %w", domain.ErrProviderUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", code)
}
