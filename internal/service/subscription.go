package service

import (
	"context"
	"fmt"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/dto"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"
	"time"

	"github.com/stripe/stripe-go/v79"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, userID, priceID string) (*dto.SubscribeResponse, error)
	Cancel(ctx context.Context, userID string, immediate bool) error
	Status(ctx context.Context, userID string) (*dto.SubscriptionStatusResponse, error)

	// SyncFromProcessor mirrors a subscription snapshot into the user record.
	// Fields are overwritten unconditionally: Stripe is the source of truth
	// and orders events per subscription, so even a "stale" period-end is
	// taken as delivered.
	SyncFromProcessor(ctx context.Context, user *model.User, sub *stripe.Subscription) error

	MarkDeleted(ctx context.Context, user *model.User, subscriptionID string) error
	MarkPastDue(ctx context.Context, user *model.User, subscriptionID string) error
}

type subscriptionServiceImpl struct {
	stripeClient client.StripeClient
	userRepo     repository.UserRepository
}

func NewSubscriptionService(
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
) SubscriptionService {
	return &subscriptionServiceImpl{
		stripeClient: stripeClient,
		userRepo:     userRepo,
	}
}

func (s *subscriptionServiceImpl) Subscribe(ctx context.Context, userID, priceID string) (*dto.SubscribeResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.StripeCustomerID == "" {
		return nil, fmt.Errorf("user %s has no stripe customer", userID)
	}

	if _, err := s.stripeClient.GetPrice(ctx, priceID); err != nil {
		return nil, fmt.Errorf("validate price: %w", err)
	}

	sub, err := s.stripeClient.CreateSubscription(ctx, user.StripeCustomerID, priceID, user.DefaultPaymentMethodID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("stripe create subscription: %w", err)
	}

	if err := s.SyncFromProcessor(ctx, user, sub); err != nil {
		return nil, err
	}

	return &dto.SubscribeResponse{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}, nil
}

// Cancel implements the two cancellation policies. Immediate cancels on
// Stripe's side and records the terminal status right away. At-period-end
// only sets the flag; the terminal transition arrives later through the
// customer.subscription.deleted event.
func (s *subscriptionServiceImpl) Cancel(ctx context.Context, userID string, immediate bool) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.SubscriptionID == "" || user.SubscriptionStatus == model.SubscriptionStatusCanceled {
		return ErrNoActiveSubscription
	}

	if immediate {
		if err := s.stripeClient.CancelSubscriptionNow(ctx, user.SubscriptionID); err != nil {
			return err
		}
		return s.userRepo.MarkSubscriptionCanceled(ctx, user.ID, user.SubscriptionID)
	}

	if err := s.stripeClient.CancelSubscriptionAtPeriodEnd(ctx, user.SubscriptionID); err != nil {
		return err
	}
	return s.userRepo.SetCancelAtPeriodEnd(ctx, user.ID, true)
}

func (s *subscriptionServiceImpl) Status(ctx context.Context, userID string) (*dto.SubscriptionStatusResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	resp := &dto.SubscriptionStatusResponse{
		SubscriptionID:    user.SubscriptionID,
		Status:            user.SubscriptionStatus,
		PriceID:           user.SubscriptionPriceID,
		CancelAtPeriodEnd: user.CancelAtPeriodEnd,
	}
	if user.SubscriptionPeriodEnd != nil {
		resp.CurrentPeriodEnd = user.SubscriptionPeriodEnd.UTC().Format(time.RFC3339)
	}

	return resp, nil
}

func (s *subscriptionServiceImpl) SyncFromProcessor(ctx context.Context, user *model.User, sub *stripe.Subscription) error {
	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	return s.userRepo.UpsertSubscription(ctx, user.ID, sub.ID, string(sub.Status), priceID, periodEnd, sub.CancelAtPeriodEnd)
}

func (s *subscriptionServiceImpl) MarkDeleted(ctx context.Context, user *model.User, subscriptionID string) error {
	return s.userRepo.MarkSubscriptionCanceled(ctx, user.ID, subscriptionID)
}

// MarkPastDue applies only when the failing invoice belongs to the user's
// current subscription; late events from a superseded subscription are
// ignored.
func (s *subscriptionServiceImpl) MarkPastDue(ctx context.Context, user *model.User, subscriptionID string) error {
	if subscriptionID == "" || user.SubscriptionID != subscriptionID {
		return nil
	}
	return s.userRepo.MarkSubscriptionPastDue(ctx, user.ID, subscriptionID)
}
