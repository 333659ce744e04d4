package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 回调处理结果分类
const (
	WebhookApplied   = "applied"   // 完成了 paid 转移
	WebhookDuplicate = "duplicate" // 订单已是 paid，幂等忽略
	WebhookIgnored   = "ignored"   // 事件类型不关心或引用号未知
	WebhookRejected  = "rejected"  // 签名不合法
)

// Monitor 业务监控指标，挂在后台服务的 /metrics 上
type Monitor struct {
	ordersCreated   prometheus.Counter
	paymentInits    prometheus.Counter
	verifies        *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	gatewayErrors   prometheus.Counter
	stockDecrements prometheus.Counter
}

// NewMonitor 创建并注册监控指标。
// 测试中可传入独立的 prometheus.NewRegistry 避免重复注册。
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		paymentInits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "payment_inits_total",
			Help:      "Total number of payment sessions initialized.",
		}),
		verifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "payment_verifies_total",
			Help:      "Total number of verify calls by outcome.",
		}, []string{"outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "payment_webhooks_total",
			Help:      "Total number of webhook deliveries by disposition.",
		}, []string{"disposition"}),
		gatewayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "gateway_errors_total",
			Help:      "Total number of failed gateway calls.",
		}),
		stockDecrements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goshop",
			Name:      "stock_decrements_total",
			Help:      "Total number of post-payment stock decrements applied.",
		}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.paymentInits,
		m.verifies,
		m.webhooks,
		m.gatewayErrors,
		m.stockDecrements,
	)
	return m
}

// RecordOrderCreated 记录订单创建
func (m *Monitor) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordPaymentInit 记录支付会话初始化
func (m *Monitor) RecordPaymentInit() {
	if m == nil {
		return
	}
	m.paymentInits.Inc()
}

// RecordVerify 记录 verify 调用结果
func (m *Monitor) RecordVerify(outcome string) {
	if m == nil {
		return
	}
	m.verifies.WithLabelValues(outcome).Inc()
}

// RecordWebhook 记录回调处理结果
func (m *Monitor) RecordWebhook(disposition string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(disposition).Inc()
}

// RecordGatewayError 记录网关调用失败
func (m *Monitor) RecordGatewayError() {
	if m == nil {
		return
	}
	m.gatewayErrors.Inc()
}

// RecordStockDecrement 记录库存扣减
func (m *Monitor) RecordStockDecrement() {
	if m == nil {
		return
	}
	m.stockDecrements.Inc()
}
