package middleware

import (
	"net/http"
	"strings"

	"seha-backend/internal/services"
	"seha-backend/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// OptionalAuth attaches an identity to the request context when a valid
// bearer token is present. Requests without one proceed as anonymous.
func OptionalAuth(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.Next()
			return
		}
		identity, err := service.ResolveIdentity(token)
		if err != nil {
			c.Next()
			return
		}
		ctx := services.WithIdentityContext(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests without a resolved identity.
func RequireAuth(service *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		identity, err := service.ResolveIdentity(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("Not authenticated"))
			c.Abort()
			return
		}
		ctx := services.WithIdentityContext(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects identities without admin capability. Must run after
// RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := services.IdentityFromContext(c.Request.Context())
		if !ok || !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("Forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
