package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/errs"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("order", "%d", id)
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByReference(ctx context.Context, ref string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("paystack_ref = ?", ref).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("order", "reference %s", ref)
		}
		return nil, err
	}
	return &o, nil
}

// AttachReference 只在引用号为空时写入；条件不满足（已有引用号）返回 ConflictError
func (r *orderRepo) AttachReference(ctx context.Context, id int64, ref string) error {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND (paystack_ref = '' OR paystack_ref IS NULL)", id).
		Update("paystack_ref", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var o order.Order
	if err := r.db.WithContext(ctx).Select("id").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("order", "%d", id)
		}
		return err
	}
	return errs.Conflict("order %d already has a gateway reference", id)
}

// MarkPaid 单条条件 UPDATE 完成 pending -> paid 转移，
// 避免读-改-写在并发对账下丢失或重放转移。
func (r *orderRepo) MarkPaid(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND payment_status <> ?", id, order.PaymentPaid).
		Updates(map[string]any{
			"payment_status": order.PaymentPaid,
			"status":         order.StatusProcessing,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// 没有命中行：要么订单不存在，要么已经是 paid（幂等成功）
	var o order.Order
	if err := r.db.WithContext(ctx).Select("id").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.NotFound("order", "%d", id)
		}
		return false, err
	}
	return false, nil
}

func (r *orderRepo) MarkRefunded(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ? AND payment_status = ?", id, order.PaymentPaid).
		Update("payment_status", order.PaymentRefunded)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.Conflict("order %d is not paid, cannot refund", id)
	}
	return nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("order", "%d", id)
	}
	return nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
