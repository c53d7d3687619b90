package repository

import (
	"context"
	"stripe-integration-demo/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	// Create appends one ledger row. A row already present under the same
	// dedup key (user + payment intent, or invoice id) makes this a no-op
	// success, so concurrent duplicate deliveries cannot double-write.
	Create(ctx context.Context, record *model.PaymentRecord) error

	ExistsByIntentID(ctx context.Context, userID, paymentIntentID string) (bool, error)
	ExistsByInvoiceID(ctx context.Context, invoiceID string) (bool, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.PaymentRecord, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, record *model.PaymentRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

func (r *paymentRepoImpl) ExistsByIntentID(ctx context.Context, userID, paymentIntentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).
		Where("user_id = ?", userID).
		Where("payment_intent_id = ?", paymentIntentID).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentRepoImpl) ExistsByInvoiceID(ctx context.Context, invoiceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentRepoImpl) ListByUserID(ctx context.Context, userID string) ([]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error

	if err != nil {
		return nil, err
	}

	return records, nil
}
