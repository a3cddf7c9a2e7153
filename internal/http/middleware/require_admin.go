package middleware

import (
	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/shared/apperr"
)

// RequireAdmin: 401 without a session, 403 for non-admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Please sign in to continue."))
			return
		}
		if !u.IsAdmin() {
			Fail(c, apperr.ForbiddenErr("Admin access required."))
			return
		}
		c.Next()
	}
}
