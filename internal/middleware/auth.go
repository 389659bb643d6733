package middleware

import (
	"net/http"
	"strings"

	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "login required")
			return
		}
		c.Next()
	}
}

// RequirePermission rejects users whose role lacks every flag in p.
func RequirePermission(p models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "login required")
			return
		}
		if !user.Role.Can(p) {
			abortJSON(c, http.StatusForbidden, "forbidden", "missing permission "+strings.Join(p.Names(), ", "))
			return
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
