package repository

import (
	"context"
	"stripe-integration-demo/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID string) (*model.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	Delete(ctx context.Context, userID string) error

	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID string) error

	// UpsertSubscription overwrites the subscription descriptor fields
	// unconditionally. Stripe is the source of truth for all of them.
	UpsertSubscription(ctx context.Context, userID, subscriptionID, status, priceID string, periodEnd *time.Time, cancelAtPeriodEnd bool) error

	// MarkSubscriptionCanceled is terminal for that subscription id. The id
	// guard keeps a late deleted event for a superseded subscription from
	// touching the user's current one.
	MarkSubscriptionCanceled(ctx context.Context, userID, subscriptionID string) error

	// MarkSubscriptionPastDue only applies while subscriptionID is still the
	// user's current subscription.
	MarkSubscriptionPastDue(ctx context.Context, userID, subscriptionID string) error

	SetCancelAtPeriodEnd(ctx context.Context, userID string, flag bool) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", userID).
		Delete(&model.User{}).Error
}

func (r *userRepoImpl) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}

func (r *userRepoImpl) SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("default_payment_method_id", paymentMethodID).Error
}

func (r *userRepoImpl) UpsertSubscription(ctx context.Context, userID, subscriptionID, status, priceID string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_id":         subscriptionID,
			"subscription_status":     status,
			"subscription_price_id":   priceID,
			"subscription_period_end": periodEnd,
			"cancel_at_period_end":    cancelAtPeriodEnd,
			"updated_at":              time.Now(),
		}).Error
}

func (r *userRepoImpl) MarkSubscriptionCanceled(ctx context.Context, userID, subscriptionID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND subscription_id = ?", userID, subscriptionID).
		Updates(map[string]interface{}{
			"subscription_status":  model.SubscriptionStatusCanceled,
			"cancel_at_period_end": false,
			"updated_at":           time.Now(),
		}).Error
}

func (r *userRepoImpl) MarkSubscriptionPastDue(ctx context.Context, userID, subscriptionID string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND subscription_id = ?", userID, subscriptionID).
		Updates(map[string]interface{}{
			"subscription_status": model.SubscriptionStatusPastDue,
			"updated_at":          time.Now(),
		}).Error
}

func (r *userRepoImpl) SetCancelAtPeriodEnd(ctx context.Context, userID string, flag bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"cancel_at_period_end": flag,
			"updated_at":           time.Now(),
		}).Error
}
