package middleware

import (
	"context"
	"net/http"
	"strings"

	"research-grant-api/models"
	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// SessionResolver turns a bearer token into the caller's session.
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*services.Session, error)
}

// AuthMiddleware validates the bearer token and its session row
func AuthMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		session, err := resolver.CurrentSession(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			message := err.Error()
			if _, ok := err.(*services.StoreError); ok {
				status = http.StatusInternalServerError
				message = "Failed to verify session"
			}
			c.JSON(status, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Set(sessionKey, session)
		c.Set("userID", session.UserID)
		c.Set("role", session.Role)

		c.Next()
	}
}

// CurrentSession returns the session stored by AuthMiddleware, or nil.
func CurrentSession(c *gin.Context) *services.Session {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil
	}
	session, _ := value.(*services.Session)
	return session
}

// RequireRole checks if user has one of the given roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if session.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}
