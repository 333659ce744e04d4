package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/user"
	"github.com/example/goshop/internal/errs"
	"github.com/example/goshop/internal/infra/paystack"
)

// Gateway 支付网关能力，由 infra/paystack 实现
type Gateway interface {
	Initialize(ctx context.Context, email string, amountKobo int64, orderID int64, reference string) (*paystack.InitResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
	ValidSignature(body []byte, signature string) bool
}

// ConfirmedPublisher 支付确认消息发布器。
// 只有"赢得"paid 转移的那一次对账才发布，保证一单至多一批后续任务。
type ConfirmedPublisher interface {
	PublishConfirmed(ctx context.Context, orderID int64, reference string) error
}

// InitPaymentResult 发起支付会话的返回
type InitPaymentResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// webhookEvent Paystack 回调报文（只取关心的字段）
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// PaymentService 对账协调器：redirect 回跳的 verify 与异步回调
// 两条路径都收敛到同一个受保护的 MarkPaid，重复或乱序到达都安全。
type PaymentService struct {
	orders    *OrderService
	users     user.Repository
	gateway   Gateway
	publisher ConfirmedPublisher
	monitor   *Monitor
	logger    *zap.Logger
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	orders *OrderService,
	users user.Repository,
	gateway Gateway,
	publisher ConfirmedPublisher,
	monitor *Monitor,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		orders:    orders,
		users:     users,
		gateway:   gateway,
		publisher: publisher,
		monitor:   monitor,
		logger:    logger,
	}
}

// InitPayment 为未支付订单开启托管支付会话。
// 先调网关、成功后才绑定引用号：网关失败时订单上什么都没写，
// 仍然是干净的 pending，可以直接重试。
func (s *PaymentService) InitPayment(ctx context.Context, orderID int64) (*InitPaymentResult, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, errs.Conflict("order %d is already paid", orderID)
	}
	if o.PaystackRef != "" {
		return nil, errs.Conflict("order %d already has a gateway reference", orderID)
	}

	email, err := s.payerEmail(ctx, o)
	if err != nil {
		return nil, err
	}

	ref := paystack.NewReference()
	amountKobo := o.Total * 100 // 奈拉 -> kobo

	res, err := s.gateway.Initialize(ctx, email, amountKobo, o.ID, ref)
	if err != nil {
		s.monitor.RecordGatewayError()
		s.logger.Error("paystack initialize failed",
			zap.Int64("order_id", o.ID), zap.Error(err))
		return nil, err
	}

	if err := s.orders.AttachReference(ctx, o.ID, res.Reference); err != nil {
		// 并发的另一次 init 抢先绑定了引用号
		return nil, err
	}
	s.monitor.RecordPaymentInit()

	return &InitPaymentResult{
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Reference,
	}, nil
}

// VerifyPayment 同步对账：按引用号找到订单，向网关查询结果。
// 网关确认 success 才走 MarkPaid；其他结果保持 pending 并向调用方
// 报告失败——之后的回调仍可能确认成功，提前置 failed 等于丢单。
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*order.Order, bool, error) {
	o, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		return nil, false, err
	}

	vr, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		s.monitor.RecordGatewayError()
		s.logger.Error("paystack verify failed",
			zap.String("reference", reference), zap.Error(err))
		return nil, false, err
	}

	if vr.Status != "success" {
		s.monitor.RecordVerify("failed")
		s.logger.Info("verify reported non-success, order stays pending",
			zap.Int64("order_id", o.ID),
			zap.String("reference", reference),
			zap.String("gateway_status", vr.Status))
		return o, false, nil
	}

	won, err := s.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	s.monitor.RecordVerify("success")
	if won {
		s.publishConfirmed(ctx, o.ID, reference)
	}

	paid, err := s.orders.Get(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	return paid, true, nil
}

// HandleWebhook 处理网关回调。签名校验是这条未鉴权入口唯一的
// 信任边界，先于一切读库操作。未知事件与未知引用号确认后丢弃，
// 不报错——否则处理器会在重试预算内反复投递毒消息。
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.ValidSignature(body, signature) {
		s.monitor.RecordWebhook(WebhookRejected)
		s.logger.Warn("webhook signature mismatch")
		return errs.Unauthorized("invalid webhook signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.monitor.RecordWebhook(WebhookIgnored)
		s.logger.Warn("webhook body is not valid json", zap.Error(err))
		return nil
	}

	if ev.Event != "charge.success" {
		s.monitor.RecordWebhook(WebhookIgnored)
		s.logger.Info("ignoring webhook event", zap.String("event", ev.Event))
		return nil
	}

	o, err := s.orders.GetByReference(ctx, ev.Data.Reference)
	if err != nil {
		if errs.IsNotFound(err) {
			s.monitor.RecordWebhook(WebhookIgnored)
			s.logger.Warn("webhook for unknown reference",
				zap.String("reference", ev.Data.Reference))
			return nil
		}
		return err
	}

	won, err := s.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return err
	}
	if won {
		s.monitor.RecordWebhook(WebhookApplied)
		s.logger.Info("order marked paid via webhook",
			zap.Int64("order_id", o.ID),
			zap.String("reference", ev.Data.Reference))
		s.publishConfirmed(ctx, o.ID, ev.Data.Reference)
	} else {
		s.monitor.RecordWebhook(WebhookDuplicate)
	}
	return nil
}

func (s *PaymentService) payerEmail(ctx context.Context, o *order.Order) (string, error) {
	if o.UserID != 0 {
		u, err := s.users.GetByID(ctx, o.UserID)
		if err != nil {
			return "", err
		}
		return u.Email, nil
	}
	if o.Guest.Email == "" {
		return "", errs.Validation("order %d has no payer email", o.ID)
	}
	return o.Guest.Email, nil
}

// publishConfirmed 发布后续任务消息。支付状态此刻已一致，
// 发布失败只记日志，后台可以对该订单手工补触发扣库存。
func (s *PaymentService) publishConfirmed(ctx context.Context, orderID int64, reference string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishConfirmed(ctx, orderID, reference); err != nil {
		s.logger.Error("failed to publish payment.confirmed",
			zap.Int64("order_id", orderID), zap.Error(err))
	}
}
