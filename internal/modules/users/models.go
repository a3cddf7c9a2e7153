// Package users holds the account records sessions resolve to. Sign-up and
// login live outside this service; it only reads them.
package users

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Username  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Phone     *string   `gorm:"type:varchar(32)"`
	Role      string    `gorm:"type:varchar(16);not null;default:member"`
	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (User) TableName() string { return "users" }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
