package middleware

import (
	"strings"

	"tenantdb/internal/services"
	"tenantdb/pkg/errors"
	"tenantdb/pkg/jwt"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware authenticates bearer tokens.
type AuthMiddleware struct {
	auth *services.AuthService
}

// NewAuthMiddleware creates the bearer token gate.
func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireLogin validates the bearer token and checks that it was issued for
// the tenant of the request.
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "Missing bearer token")
			c.Abort()
			return
		}

		claims, err := m.auth.Validate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "Token is invalid or expired")
			c.Abort()
			return
		}

		scope, ok := CurrentScope(c)
		if !ok {
			response.ServerError(c, "Tenancy is not initialized")
			c.Abort()
			return
		}
		if claims.TenantID != scope.TenantID() {
			response.FromError(c, errors.ErrTenantMismatch)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Set("user_id", claims.UserID())
		c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// CurrentClaims returns the claims stored by RequireLogin.
func CurrentClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}
