package service

import (
	"context"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/errs"
)

// CreateOrderInput 已通过边界校验的下单请求
type CreateOrderInput struct {
	UserID        int64 // 0 表示游客下单
	Guest         *order.GuestInfo
	Items         []ItemInput
	Address       order.Address
	PaymentMethod string
}

// OrderService 订单台账：唯一允许写订单支付字段的入口
type OrderService struct {
	repo    order.Repository
	pricing *PricingService
	monitor *Monitor
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository, pricing *PricingService, monitor *Monitor) *OrderService {
	return &OrderService{repo: repo, pricing: pricing, monitor: monitor}
}

// Create 校验请求、由服务端重算价格、落库一条 pending/pending 订单
func (s *OrderService) Create(ctx context.Context, in *CreateOrderInput) (*order.Order, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, err
	}

	q, err := s.pricing.Quote(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		UserID:        in.UserID,
		Items:         q.Items,
		Subtotal:      q.Subtotal,
		Shipping:      q.Shipping,
		Total:         q.Total,
		Address:       in.Address,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: order.PaymentPending,
		Status:        order.StatusPending,
	}
	if in.UserID == 0 {
		o.Guest = *in.Guest
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.monitor.RecordOrderCreated()
	return o, nil
}

// Get 查询订单
func (s *OrderService) Get(ctx context.Context, id int64) (*order.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByReference 按网关引用号查询订单
func (s *OrderService) GetByReference(ctx context.Context, ref string) (*order.Order, error) {
	return s.repo.GetByReference(ctx, ref)
}

// MarkPaid 幂等的 paid 转移。返回本次是否真正完成转移，
// 已是 paid 时返回 (false, nil)，不算错误。
func (s *OrderService) MarkPaid(ctx context.Context, id int64) (bool, error) {
	return s.repo.MarkPaid(ctx, id)
}

// AttachReference 绑定网关引用号，只允许一次
func (s *OrderService) AttachReference(ctx context.Context, id int64, ref string) error {
	return s.repo.AttachReference(ctx, id, ref)
}

// MarkRefunded 后台退款标记，仅允许 paid -> refunded
func (s *OrderService) MarkRefunded(ctx context.Context, id int64) error {
	return s.repo.MarkRefunded(ctx, id)
}

// UpdateStatus 后台更新履约状态
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) error {
	switch status {
	case order.StatusPending, order.StatusProcessing, order.StatusShipped,
		order.StatusDelivered, order.StatusCancelled:
	default:
		return errs.Validation("unknown fulfillment status %q", status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// ListRecent 查询最新订单（后台）
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}

// ListByUser 查询用户订单
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func validateCreateOrder(in *CreateOrderInput) error {
	if len(in.Items) == 0 {
		return errs.Validation("cannot create an order with no items")
	}
	switch in.PaymentMethod {
	case order.MethodPaystack, order.MethodCOD:
	case "":
		return errs.Validation("payment method is required")
	default:
		return errs.Validation("unsupported payment method %q", in.PaymentMethod)
	}
	// 注册用户与游客信息必须二选一
	if in.UserID == 0 && (in.Guest == nil || in.Guest.Email == "") {
		return errs.Validation("order must be linked to a user or a guest email")
	}
	if in.UserID != 0 && in.Guest != nil && in.Guest.Email != "" {
		return errs.Validation("order cannot carry both a user and guest info")
	}
	a := in.Address
	if a.FullName == "" || a.Line1 == "" || a.City == "" || a.State == "" ||
		a.PostalCode == "" || a.Country == "" {
		return errs.Validation("shipping address is incomplete")
	}
	return nil
}
