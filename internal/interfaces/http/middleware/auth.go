package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// AuthMiddleware requires a valid bearer token on every request it guards.
type AuthMiddleware struct {
	verifier auth.Verifier
	logger   logging.Logger
}

func NewAuthMiddleware(verifier auth.Verifier, logger logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Authenticate verifies the bearer token and stores its claims on the
// request context. The reason a token was refused is logged, not returned.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractBearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			RespondError(c, errors.Unauthorized("authentication required"))
			return
		}
		claims, err := m.verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			logging.FromContext(c.Request.Context(), m.logger).Debug("Token rejected",
				logging.String("path", c.Request.URL.Path), logging.Err(err))
			RespondError(c, errors.Unauthorized("invalid or expired token"))
			return
		}
		ctx := auth.ContextWithClaims(c.Request.Context(), claims)
		ctx = logging.WithContext(ctx, logging.FromContext(ctx, m.logger).With(logging.UserID(claims.UserID())))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserID returns the authenticated user of the request, or "".
func UserID(c *gin.Context) string {
	return auth.UserIDFromContext(c.Request.Context())
}
