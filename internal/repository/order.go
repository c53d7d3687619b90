package repository

import (
	"context"
	"stripe-integration-demo/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByRef(ctx context.Context, userID, orderRef string) (*model.Order, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.Order, error)
	GetOrderItems(ctx context.Context, orderRef string) ([]*model.OrderItem, error)

	// ApplyOutcome moves a pending order to a terminal state. It updates only
	// status, payment_status and updated_at, guarded on the current status, so
	// a terminal order is never overwritten and redelivery is a no-op.
	// Returns gorm.ErrRecordNotFound when no order exists under the ref.
	ApplyOutcome(ctx context.Context, userID, orderRef, status, paymentStatus string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByRef(ctx context.Context, userID, orderRef string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_ref = ? AND user_id = ?", orderRef, userID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderRef string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) ApplyOutcome(ctx context.Context, userID, orderRef, status, paymentStatus string) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_ref = ? AND user_id = ? AND status = ?",
			orderRef, userID, model.OrderStatusPending,
		).
		Updates(map[string]interface{}{
			"status":         status,
			"payment_status": paymentStatus,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing matched: either the order is already terminal (fine) or it does
	// not exist at all.
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_ref = ? AND user_id = ?", orderRef, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
