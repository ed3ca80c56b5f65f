// Package auth issues and verifies the HS256 bearer tokens the API accepts.
// The subject claim carries the user id that owns properties and cases.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Errors returned by Verify. All carry the Unauthorized code.
var (
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "invalid token signature")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "invalid token issuer")
	ErrTokenInvalidAudience  = errors.New(errors.ErrCodeUnauthorized, "invalid token audience")
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "malformed token")
	ErrMissingSubject        = errors.New(errors.ErrCodeUnauthorized, "token has no subject")
	ErrInvalidConfig         = errors.New(errors.ErrCodeValidation, "invalid auth configuration")
)

const minSecretLength = 16

// Claims are the token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c *Claims) UserID() string { return c.Subject }

// Verifier validates raw bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// TokenService signs and verifies tokens with one shared secret.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService validates cfg and returns a service.
func NewTokenService(cfg config.AuthConfig, opts ...Option) (*TokenService, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, ErrInvalidConfig.WithDetail(fmt.Sprintf("jwt_secret must be at least %d bytes", minSecretLength))
	}
	s := &TokenService{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = config.DefaultTokenTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for userID. A ttl of zero uses the configured TTL.
func (s *TokenService) Issue(userID, email string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.InvalidParam("user id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to sign token")
	}
	return signed, exp, nil
}

// Verify checks signature, expiry, issuer and audience, and returns the
// claims.
func (s *TokenService) Verify(_ context.Context, raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrTokenMalformed
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalidSignature
		case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrTokenInvalidIssuer
		case stderrors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrTokenInvalidAudience
		case stderrors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		}
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}
	if !tok.Valid {
		return nil, ErrTokenInvalidSignature
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
