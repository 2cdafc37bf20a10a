package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "user_role"
)

// UserID returns the account id set by the session middleware.
func UserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserID))
}

// Role returns the canonical role set by the session middleware.
func Role(c *gin.Context) string {
	return c.GetString(CtxRole)
}
