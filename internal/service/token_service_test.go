package service_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
	"ledgerscan/internal/service"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := service.NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "ledgerscan"})
	require.True(t, svc.Enabled())

	issued, err := svc.Issue("ops@example.com", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 5*time.Second)

	claims, err := svc.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "ledgerscan", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_ValidateRejects(t *testing.T) {
	svc := service.NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "ledgerscan"})

	expired, err := service.NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "ledgerscan"}).Issue("ops", -time.Minute)
	require.NoError(t, err)
	otherKey, err := service.NewTokenService(config.JWTConfig{Secret: "other", Issuer: "ledgerscan"}).Issue("ops", time.Hour)
	require.NoError(t, err)
	otherIssuer, err := service.NewTokenService(config.JWTConfig{Secret: "s3cret", Issuer: "elsewhere"}).Issue("ops", time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "ops", Issuer: "ledgerscan"}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"expired":      expired.Token,
		"other key":    otherKey.Token,
		"other issuer": otherIssuer.Token,
		"hs512":        hs512,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(tok)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestTokenService_Disabled(t *testing.T) {
	svc := service.NewTokenService(config.JWTConfig{Issuer: "ledgerscan"})

	assert.False(t, svc.Enabled())
	_, err := svc.Issue("ops", time.Hour)
	assert.Error(t, err)
	_, err = svc.Validate("anything")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenService_IssueRequiresSubject(t *testing.T) {
	svc := service.NewTokenService(config.JWTConfig{Secret: "s3cret"})
	_, err := svc.Issue("", time.Hour)
	assert.Error(t, err)
}
