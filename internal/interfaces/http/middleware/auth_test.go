package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

func newTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Issuer:    "landlordcomply",
		Audience:  "landlordcomply-api",
		TokenTTL:  time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func protectedEngine(v auth.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(NewAuthMiddleware(v, nil).Authenticate())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	svc := newTokenService(t)
	r := protectedEngine(svc)

	token, _, err := svc.Issue("user-7", "owner@example.com", 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", w.Body.String())
}

func TestAuthenticate_SchemeIsCaseInsensitive(t *testing.T) {
	svc := newTokenService(t)
	token, _, err := svc.Issue("user-7", "", 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer  "+token)
	w := serve(protectedEngine(svc), req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticate_Rejects(t *testing.T) {
	svc := newTokenService(t)
	r := protectedEngine(svc)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, string(errors.ErrCodeUnauthorized), decodeError(t, w).Code)
		})
	}
}

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestAuthenticate_VerifierErrorIsNotLeaked(t *testing.T) {
	r := protectedEngine(stubVerifier{err: errors.New(errors.ErrCodeUnauthorized, "signature mismatch for kid 3")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := serve(r, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "kid 3")
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("  BEARER abc  "))
	assert.Empty(t, extractBearerToken("Token abc"))
	assert.Empty(t, extractBearerToken("abc"))
}
