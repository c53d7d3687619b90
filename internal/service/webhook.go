package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"

	"gorm.io/gorm"
)

type WebhookService interface {
	// HandleWebhook verifies the signature against the raw body bytes, then
	// dispatches the decoded event. Returns a client.ErrInvalidSignature /
	// client.ErrWebhookSecretMissing wrapped error before any state is
	// touched; any other error is an internal fault the caller should answer
	// 5xx for so Stripe redelivers.
	HandleWebhook(ctx context.Context, sigHeader string, body []byte) error
}

type webhookServiceImpl struct {
	stripeClient     client.StripeClient
	userRepo         repository.UserRepository
	webhookEventRepo repository.WebhookEventRepository
	ledgerService    LedgerService
	subService       SubscriptionService
}

func NewWebhookService(
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
	webhookEventRepo repository.WebhookEventRepository,
	ledgerService LedgerService,
	subService SubscriptionService,
) WebhookService {
	return &webhookServiceImpl{
		stripeClient:     stripeClient,
		userRepo:         userRepo,
		webhookEventRepo: webhookEventRepo,
		ledgerService:    ledgerService,
		subService:       subService,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, sigHeader string, body []byte) error {
	event, err := s.stripeClient.VerifyWebhookSignature(body, sigHeader)
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return err
	}
	if processed {
		log.Printf("event %s already processed, acking", event.ID)
		return nil
	}

	parsed, err := parseEvent(event)
	if err != nil {
		// Signature checked out but the payload shape did not. Ack it:
		// redelivery would fail identically.
		log.Printf("event %s (%s): %v", event.ID, event.Type, err)
		return nil
	}

	if err := s.dispatch(ctx, parsed); err != nil {
		return err
	}

	return s.webhookEventRepo.MarkProcessed(ctx, event.ID, string(event.Type))
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, evt *webhookEvent) error {
	var err error

	switch evt.kind {
	case eventPaymentIntentSucceeded:
		err = s.handlePaymentOutcome(ctx, evt, model.PaymentStatusSucceeded)
	case eventPaymentIntentProcessing:
		err = s.handlePaymentOutcome(ctx, evt, model.PaymentStatusProcessing)
	case eventPaymentIntentFailed:
		err = s.handlePaymentOutcome(ctx, evt, model.PaymentStatusFailed)
	case eventPaymentIntentCanceled:
		err = s.handlePaymentOutcome(ctx, evt, model.PaymentStatusCanceled)
	case eventSubscriptionCreated, eventSubscriptionUpdated:
		err = s.handleSubscriptionSync(ctx, evt)
	case eventSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, evt)
	case eventInvoicePaymentSucceeded:
		err = s.handleInvoiceOutcome(ctx, evt, model.PaymentStatusSucceeded)
	case eventInvoicePaymentFailed:
		err = s.handleInvoiceOutcome(ctx, evt, model.PaymentStatusFailed)
	default:
		log.Printf("unhandled event type %s, acking", evt.evtType)
		return nil
	}

	// Resolution misses are per-handler failures, not delivery failures. The
	// record they target does not exist locally; retrying cannot change that.
	if errors.Is(err, ErrUserNotFound) {
		log.Printf("event %s (%s): %v, dropping", evt.id, evt.evtType, err)
		return nil
	}

	return err
}

// resolveUser maps an event to exactly one local user. Metadata written by our
// own checkout/subscribe code wins over the customer-id index; the latter
// serves processor-initiated events that carry no metadata.
func (s *webhookServiceImpl) resolveUser(ctx context.Context, customerID string, metadata map[string]string) (*model.User, error) {
	if uid := metadata["user_id"]; uid != "" {
		user, err := s.userRepo.FindByID(ctx, uid)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if customerID != "" {
		user, err := s.userRepo.FindByStripeCustomerID(ctx, customerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, ErrUserNotFound
}

func (s *webhookServiceImpl) handlePaymentOutcome(ctx context.Context, evt *webhookEvent, status string) error {
	pi := evt.paymentIntent

	customerID := ""
	if pi.Customer != nil {
		customerID = pi.Customer.ID
	}
	user, err := s.resolveUser(ctx, customerID, pi.Metadata)
	if err != nil {
		return err
	}

	return s.ledgerService.RecordPaymentOutcome(ctx, user, pi, status)
}

func (s *webhookServiceImpl) handleSubscriptionSync(ctx context.Context, evt *webhookEvent) error {
	sub := evt.subscription

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	user, err := s.resolveUser(ctx, customerID, sub.Metadata)
	if err != nil {
		return err
	}

	return s.subService.SyncFromProcessor(ctx, user, sub)
}

func (s *webhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, evt *webhookEvent) error {
	sub := evt.subscription

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	user, err := s.resolveUser(ctx, customerID, sub.Metadata)
	if err != nil {
		return err
	}

	return s.subService.MarkDeleted(ctx, user, sub.ID)
}

func (s *webhookServiceImpl) handleInvoiceOutcome(ctx context.Context, evt *webhookEvent, status string) error {
	inv := evt.invoice

	customerID := ""
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	user, err := s.resolveUser(ctx, customerID, inv.Metadata)
	if err != nil {
		return err
	}

	if err := s.ledgerService.RecordInvoicePayment(ctx, user, inv, status); err != nil {
		return err
	}

	if status == model.PaymentStatusFailed && inv.Subscription != nil {
		return s.subService.MarkPastDue(ctx, user, inv.Subscription.ID)
	}

	return nil
}
