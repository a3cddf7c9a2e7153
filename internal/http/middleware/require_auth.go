package middleware

import (
	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/shared/apperr"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			Fail(c, apperr.UnauthorizedErr("Please sign in to continue."))
			return
		}
		c.Next()
	}
}
