package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/http/middleware"
)

var timeNow = time.Now

func itoa(n int) string { return strconv.Itoa(n) }

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func pagesFromTotal(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

// actorID returns the signed-in user's id, or nil for guests.
func actorID(c *gin.Context) *string {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	id := u.ID
	return &id
}

// canSee: member-owned records are visible to their owner and admins; guest
// records to whoever holds the id.
func canSee(c *gin.Context, owner *string) bool {
	if owner == nil {
		return true
	}
	u, ok := middleware.CurrentUser(c)
	return ok && (u.ID == *owner || u.IsAdmin())
}
