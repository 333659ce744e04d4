package order

import (
	"context"
	"time"
)

// 支付状态
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// 履约状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// 支付方式
const (
	MethodPaystack = "paystack"
	MethodCOD      = "cod" // 货到付款
)

// GuestInfo 游客下单时的联系信息（与 UserID 二选一）
type GuestInfo struct {
	Email string `gorm:"size:128" json:"email"`
	Name  string `gorm:"size:128" json:"name"`
}

// Address 收货地址
type Address struct {
	FullName   string `gorm:"size:128" json:"fullName"`
	Line1      string `gorm:"size:255" json:"addressLine1"`
	Line2      string `gorm:"size:255" json:"addressLine2"`
	City       string `gorm:"size:64" json:"city"`
	State      string `gorm:"size:64" json:"state"`
	PostalCode string `gorm:"size:32" json:"postalCode"`
	Country    string `gorm:"size:64" json:"country"`
	Phone      string `gorm:"size:32" json:"phoneNumber"`
}

// LineItem 订单行：下单时刻的商品快照。
// 此后不再回读商品表，商品改价或删除都不影响历史订单。
type LineItem struct {
	ID        int64  `gorm:"primaryKey" json:"-"`
	OrderID   int64  `gorm:"index;not null" json:"-"`
	ProductID int64  `gorm:"not null" json:"productId"`
	Name      string `gorm:"size:150;not null" json:"name"`
	Price     int64  `gorm:"not null" json:"price"` // 下单时的实际单价
	Quantity  int64  `gorm:"not null" json:"quantity"`
	Image     string `gorm:"size:255" json:"image"`
}

// Order 订单模型。只追加不删除：取消是一种状态，不是物理删除。
type Order struct {
	ID     int64     `gorm:"primaryKey" json:"id"`
	UserID int64     `gorm:"index" json:"userId"` // 0 表示游客订单
	Guest  GuestInfo `gorm:"embedded;embeddedPrefix:guest_" json:"guestInfo"`

	Items []LineItem `json:"items"`

	Subtotal int64 `gorm:"not null" json:"subtotal"`
	Shipping int64 `gorm:"not null" json:"shipping"`
	Total    int64 `gorm:"not null" json:"total"`

	Address Address `gorm:"embedded;embeddedPrefix:ship_" json:"shippingAddress"`

	PaymentMethod string `gorm:"size:16;not null" json:"paymentMethod"`
	PaymentStatus string `gorm:"size:16;index;not null" json:"paymentStatus"`
	Status        string `gorm:"size:16;index;not null" json:"status"` // 履约状态

	// PaystackRef 网关引用号，发起支付会话后写入且只写一次，
	// 是订单与外部交易记录之间的关联键。
	PaystackRef string `gorm:"index;size:64" json:"paystackRef"`

	// StockDecremented 支付成功后是否已扣减库存（保证只扣一次）
	StockDecremented bool `gorm:"not null;default:false" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository 订单仓储接口。
// MarkPaid 与 AttachReference 必须实现为条件更新（CAS），
// 并发的对账请求不允许出现读-改-写竞态。
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByReference(ctx context.Context, ref string) (*Order, error)

	// AttachReference 绑定网关引用号，只允许绑定一次；
	// 已存在非空引用号时返回 ConflictError。
	AttachReference(ctx context.Context, id int64, ref string) error

	// MarkPaid 把 pending 订单置为 paid/processing。
	// 返回本次调用是否真正完成了状态转移；订单已是 paid 时
	// 返回 (false, nil)，即幂等的静默成功。
	MarkPaid(ctx context.Context, id int64) (bool, error)

	// MarkRefunded 仅允许 paid -> refunded
	MarkRefunded(ctx context.Context, id int64) error

	// UpdateStatus 更新履约状态（后台操作）
	UpdateStatus(ctx context.Context, id int64, status string) error

	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
}
