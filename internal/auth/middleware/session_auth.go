package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/auth"
	"github.com/presensia/presensia-core/internal/auth/domain"
)

// Session is the part of the session controller the guard needs.
type Session interface {
	Token() string
	Current() *domain.UserProfile
}

// SessionAuth admits requests whose bearer token is the token of the
// process's authenticated session.
func SessionAuth(session Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
			return
		}

		current := session.Token()
		if current == "" || subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			return
		}
		profile := session.Current()
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
			return
		}

		c.Set(auth.CtxUserID, profile.ID)
		c.Set(auth.CtxRole, string(profile.Role))
		c.Next()
	}
}

// RequireRole rejects requests from accounts outside roles. It must run after
// SessionAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := domain.Role(auth.Role(c))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "error": "insufficient role"})
	}
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
