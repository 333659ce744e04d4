package user

import (
	"context"
	"time"
)

// User 注册用户（顾客/管理员）
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;size:128;not null"`
	Name      string `gorm:"size:128"`
	Password  string `gorm:"size:255;not null"` // 已加密密码
	Salt      string `gorm:"size:64"`
	IsAdmin   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
