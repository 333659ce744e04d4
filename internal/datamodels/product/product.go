package product

import (
	"context"
	"time"
)

// Product 商品模型
type Product struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:150;not null"`
	Slug        string `gorm:"uniqueIndex;size:160"`
	Description string `gorm:"size:1024"`
	Price       int64  `gorm:"not null"` // 整数金额（奈拉），网关侧再折算为 kobo
	SalePrice   int64  // 促销价，0 表示未促销
	Stock       int64  `gorm:"not null"`
	Category    string `gorm:"size:32;index"`
	Image       string `gorm:"size:255"`
	Status      int    `gorm:"index"` // 0:下线 1:正常
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice 实际售价：有促销价时取促销价，否则取原价
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, category string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
