package middleware

import (
	"crypto/sha256"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"summitpass.id/app/internal/modules/users"
)

const (
	ctxKeySession = "session"
	ctxKeyUser    = "user"
)

type SessionCfg struct {
	DB         *gorm.DB
	CookieName string
	Secure     bool
}

// Session rows are written by the account service at login; the cookie holds
// the raw token and the table only its SHA-256.
type Session struct {
	ID         string    `gorm:"primaryKey;type:char(36)"`
	UserID     string    `gorm:"type:char(36);not null;index:ix_sessions_user_id"`
	TokenHash  []byte    `gorm:"type:binary(32);not null;uniqueIndex:ux_sessions_token_hash"`
	ExpiresAt  time.Time `gorm:"precision:3;not null"`
	CreatedAt  time.Time `gorm:"precision:3;not null"`
	UpdatedAt  time.Time `gorm:"precision:3;not null"`
	LastSeenAt time.Time `gorm:"precision:3;not null"`
}

func (Session) TableName() string { return "sessions" }

// HashToken is how a cookie token is looked up in the sessions table.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// SessionMiddleware resolves the session cookie to a user. Requests without a
// valid session continue anonymously.
func SessionMiddleware(cfg SessionCfg) gin.HandlerFunc {
	repo := users.NewRepo(cfg.DB)

	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		var sess Session
		if err := cfg.DB.WithContext(ctx).
			Where("token_hash = ? AND expires_at > ?", HashToken(token), time.Now()).
			First(&sess).Error; err != nil {
			c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.Secure, true)
			c.Next()
			return
		}

		u, err := repo.Get(ctx, sess.UserID)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ctxKeySession, &sess)
		c.Set(ctxKeyUser, ContextUser{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Phone:    u.Phone,
			Role:     u.Role,
		})
		c.Next()
	}
}

// ContextUser is the authenticated identity of the current request.
type ContextUser struct {
	ID       string
	Username string
	Email    string
	Phone    *string
	Role     string
}

func (u ContextUser) IsAdmin() bool { return u.Role == users.RoleAdmin }

func CurrentUser(c *gin.Context) (ContextUser, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return ContextUser{}, false
	}
	u, ok := v.(ContextUser)
	if !ok || u.ID == "" {
		return ContextUser{}, false
	}
	return u, true
}

// SetUser is for tests and internal callers that authenticate another way.
func SetUser(c *gin.Context, u ContextUser) { c.Set(ctxKeyUser, u) }
