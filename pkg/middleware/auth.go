package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petlogue/consultation-service/pkg/token"
)

const (
	PrincipalKey  = "principal"
	AuthHeaderKey = "Authorization"
)

// AuthMiddleware validates bearer tokens with the shared-secret validator.
// Tokens are issued by the external auth service; this service only verifies
// them.
type AuthMiddleware struct {
	validator token.Validator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator token.Validator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth returns a Gin middleware that rejects requests without a valid
// bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		raw, ok := token.FromBearer(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format",
			})
			return
		}

		principal, err := m.validator.Validate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from the Gin context.
func GetPrincipal(c *gin.Context) *token.Principal {
	if v, exists := c.Get(PrincipalKey); exists {
		if p, ok := v.(*token.Principal); ok {
			return p
		}
	}
	return nil
}
