package service

import (
	"context"
	"fmt"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/errs"
)

const (
	redisStockDecrKey    = "stock:decr:%d" // orderID
	stockClaimTTLSeconds = 86400
)

// StockService 支付成功后的库存扣减。
// 与 MarkPaid 分离为独立操作，由自身的不变式保护：一单只扣一次。
type StockService struct {
	db      *gorm.DB
	redis   radix.Client
	monitor *Monitor
	logger  *zap.Logger
}

// NewStockService 创建库存服务
func NewStockService(db *gorm.DB, redisClient radix.Client, monitor *Monitor, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{db: db, redis: redisClient, monitor: monitor, logger: logger}
}

// DecrementForOrder 为已支付订单扣减各行商品库存。
// Redis SETNX 占位挡掉廉价的重复投递；权威保护是订单行上的
// stock_decremented 标记，在同一事务里条件翻转。
// 扣减时某行库存不足只告警跳过：钱已经收了，这属于后台补货问题，
// 不能因此回滚支付。
func (s *StockService) DecrementForOrder(ctx context.Context, orderID int64) error {
	claimKey := fmt.Sprintf(redisStockDecrKey, orderID)
	if s.redis != nil {
		var resp string
		if err := s.redis.Do(radix.Cmd(&resp, "SET", claimKey, "1",
			"NX", "EX", fmt.Sprintf("%d", stockClaimTTLSeconds))); err != nil {
			s.logger.Warn("redis claim failed, falling through to db guard", zap.Error(err))
		} else if resp != "OK" {
			// 已有占位，重复投递
			return nil
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&o, orderID).Error; err != nil {
			return err
		}
		if o.StockDecremented {
			return nil
		}
		if o.PaymentStatus != order.PaymentPaid {
			return errs.Validation("order %d is not paid, refusing to decrement stock", orderID)
		}

		for _, item := range o.Items {
			res := tx.Exec(
				"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?",
				item.Quantity, item.ProductID, item.Quantity,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				s.logger.Warn("stock shortfall at decrement time, skipping line",
					zap.Int64("order_id", orderID),
					zap.Int64("product_id", item.ProductID),
					zap.Int64("quantity", item.Quantity))
			}
		}

		return tx.Model(&order.Order{}).
			Where("id = ? AND stock_decremented = ?", orderID, false).
			Update("stock_decremented", true).Error
	})
	if err != nil {
		// 事务失败时释放占位，让下一次投递还能进来
		if s.redis != nil {
			_ = s.redis.Do(radix.Cmd(nil, "DEL", claimKey))
		}
		return err
	}

	s.monitor.RecordStockDecrement()
	return nil
}
