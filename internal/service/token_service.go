package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
)

// IssuedToken is a signed bearer token and its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService issues and validates HS256 API bearer tokens.
type TokenService interface {
	// Enabled reports whether a signing secret is configured. Without one
	// the API runs unauthenticated.
	Enabled() bool
	Issue(subject string, ttl time.Duration) (*IssuedToken, error)
	Validate(tokenString string) (*jwt.RegisteredClaims, error)
}

type tokenService struct {
	cfg    config.JWTConfig
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenService creates a TokenService from the JWT settings.
func NewTokenService(cfg config.JWTConfig) TokenService {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &tokenService{cfg: cfg, parser: jwt.NewParser(opts...), now: time.Now}
}

func (s *tokenService) Enabled() bool {
	return s.cfg.Secret != ""
}

func (s *tokenService) Issue(subject string, ttl time.Duration) (*IssuedToken, error) {
	if !s.Enabled() {
		return nil, errors.New("tokenService.Issue: no JWT secret configured")
	}
	if subject == "" {
		return nil, errors.New("tokenService.Issue: subject is required")
	}
	now := s.now()
	expiry := now.Add(ttl)

	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiry}, nil
}

func (s *tokenService) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	if !s.Enabled() {
		return nil, domain.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
