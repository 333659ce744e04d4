package service

import (
	"context"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/errs"
)

// ItemInput 下单请求里的单个条目
type ItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// Quote 服务端计算出的权威价格
type Quote struct {
	Subtotal int64
	Shipping int64
	Total    int64
	// Items 下单时刻的商品快照，此后不再回读商品表
	Items []order.LineItem
}

// PricingService 价格计算器。
// 金额一律以当前商品表为准重新计算，客户端提交的价格不可信。
type PricingService struct {
	products product.Repository
	shipping *config.ShippingConfig
}

// NewPricingService 创建价格计算服务
func NewPricingService(products product.Repository, shipping *config.ShippingConfig) *PricingService {
	return &PricingService{products: products, shipping: shipping}
}

// Quote 逐条解析商品、校验库存、按促销价/原价计小计，再套运费规则。
// 任何一条不合法就整单拒绝，不做部分成功。
func (s *PricingService) Quote(ctx context.Context, items []ItemInput) (*Quote, error) {
	if len(items) == 0 {
		return nil, errs.Validation("cannot create an order with no items")
	}

	q := &Quote{Items: make([]order.LineItem, 0, len(items))}
	for _, in := range items {
		if in.Quantity < 1 {
			return nil, errs.Validation("quantity must be at least 1 for product %d", in.ProductID)
		}

		p, err := s.products.GetByID(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Status != 1 {
			return nil, errs.Validation("product %q is not available", p.Name)
		}
		if p.Stock < in.Quantity {
			return nil, errs.Validation("not enough stock for %q", p.Name)
		}

		unit := p.EffectivePrice()
		q.Subtotal += unit * in.Quantity
		q.Items = append(q.Items, order.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     unit,
			Quantity:  in.Quantity,
			Image:     p.Image,
		})
	}

	if q.Subtotal > s.shipping.FreeThreshold {
		q.Shipping = 0
	} else {
		q.Shipping = s.shipping.FlatFee
	}
	q.Total = q.Subtotal + q.Shipping
	return q, nil
}
