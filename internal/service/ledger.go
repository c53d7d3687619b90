package service

import (
	"context"
	"errors"
	"log"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"

	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"
)

// cardLast4Placeholder is written when the payment-method lookup fails. The
// ledger row must land regardless of enrichment.
const cardLast4Placeholder = "****"

// LedgerService appends payment attempts to the ledger and drives the order
// state machine off succeeded/failed/canceled outcomes. Both the synchronous
// checkout path and the webhook path go through here, so the transition rules
// cannot diverge between them.
type LedgerService interface {
	RecordPaymentOutcome(ctx context.Context, user *model.User, pi *stripe.PaymentIntent, status string) error
	RecordInvoicePayment(ctx context.Context, user *model.User, inv *stripe.Invoice, status string) error
}

type ledgerServiceImpl struct {
	stripeClient client.StripeClient
	userRepo     repository.UserRepository
	paymentRepo  repository.PaymentRepository
	orderRepo    repository.OrderRepository
}

func NewLedgerService(
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
) LedgerService {
	return &ledgerServiceImpl{
		stripeClient: stripeClient,
		userRepo:     userRepo,
		paymentRepo:  paymentRepo,
		orderRepo:    orderRepo,
	}
}

func (s *ledgerServiceImpl) RecordPaymentOutcome(ctx context.Context, user *model.User, pi *stripe.PaymentIntent, status string) error {
	// Advisory check only. The insert below suppresses duplicates on its own,
	// so a stale read here cannot double-write.
	exists, err := s.paymentRepo.ExistsByIntentID(ctx, user.ID, pi.ID)
	if err != nil {
		return err
	}
	if exists {
		// The row landed on an earlier delivery, but that delivery may have
		// raced the checkout insert and missed the order. Re-applying the
		// order transition is a no-op once the order is terminal.
		log.Printf("payment intent %s already recorded for user %s", pi.ID, user.ID)
		return s.applyOrderOutcome(ctx, user.ID, pi.Metadata["order_ref"], status, string(pi.Status))
	}

	record := &model.PaymentRecord{
		UserID:          user.ID,
		PaymentIntentID: pi.ID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		Status:          status,
		OrderRef:        pi.Metadata["order_ref"],
		CardLast4:       s.lookupCardLast4(ctx, pi),
	}
	if pi.LastPaymentError != nil {
		record.ErrorMessage = pi.LastPaymentError.Msg
	}

	if err := s.paymentRepo.Create(ctx, record); err != nil {
		return err
	}

	if status == model.PaymentStatusSucceeded && pi.PaymentMethod != nil {
		if err := s.userRepo.SetDefaultPaymentMethod(ctx, user.ID, pi.PaymentMethod.ID); err != nil {
			log.Printf("save default payment method for user %s: %v", user.ID, err)
		}
	}

	return s.applyOrderOutcome(ctx, user.ID, record.OrderRef, status, string(pi.Status))
}

func (s *ledgerServiceImpl) RecordInvoicePayment(ctx context.Context, user *model.User, inv *stripe.Invoice, status string) error {
	exists, err := s.paymentRepo.ExistsByInvoiceID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("invoice %s already recorded, skipping", inv.ID)
		return nil
	}

	amount := inv.AmountPaid
	if status != model.PaymentStatusSucceeded {
		amount = inv.AmountDue
	}

	record := &model.PaymentRecord{
		UserID:   user.ID,
		Amount:   amount,
		Currency: string(inv.Currency),
		Status:   status,
	}
	invoiceID := inv.ID
	record.InvoiceID = &invoiceID
	if inv.Subscription != nil {
		record.SubscriptionID = inv.Subscription.ID
	}
	// Invoices without an attached intent (e.g. fully discounted) still get a
	// ledger row keyed by the invoice id.
	if inv.PaymentIntent != nil {
		record.PaymentIntentID = inv.PaymentIntent.ID
	} else {
		record.PaymentIntentID = inv.ID
	}

	return s.paymentRepo.Create(ctx, record)
}

// lookupCardLast4 resolves the card digits for display. Any failure degrades
// to a placeholder: ledger durability beats enrichment completeness.
func (s *ledgerServiceImpl) lookupCardLast4(ctx context.Context, pi *stripe.PaymentIntent) string {
	if pi.PaymentMethod == nil || pi.PaymentMethod.ID == "" {
		return ""
	}

	pm, err := s.stripeClient.GetPaymentMethod(ctx, pi.PaymentMethod.ID)
	if err != nil {
		log.Printf("lookup payment method %s: %v", pi.PaymentMethod.ID, err)
		return cardLast4Placeholder
	}
	if pm.Card == nil {
		return ""
	}

	return pm.Card.Last4
}

func (s *ledgerServiceImpl) applyOrderOutcome(ctx context.Context, userID, orderRef, status, paymentStatus string) error {
	if orderRef == "" {
		return nil
	}

	var orderStatus string
	switch status {
	case model.PaymentStatusSucceeded:
		orderStatus = model.OrderStatusCompleted
	case model.PaymentStatusFailed:
		orderStatus = model.OrderStatusFailed
	case model.PaymentStatusCanceled:
		orderStatus = model.OrderStatusCanceled
	default:
		// processing: the order stays pending until a terminal outcome lands
		return nil
	}

	err := s.orderRepo.ApplyOutcome(ctx, userID, orderRef, orderStatus, paymentStatus)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The ledger row is durable; the order may simply not be written yet
		// (event raced the checkout insert) or the ref is bogus. Either way
		// the delivery is acknowledged, not retried.
		log.Printf("order %s not found for user %s: %v", orderRef, userID, ErrOrderNotFound)
		return nil
	}

	return err
}
