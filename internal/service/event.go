package service

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
)

// eventKind is the closed set of Stripe event types the dispatcher routes on.
// Everything else maps to eventUnknown and is acknowledged without action, so
// Stripe can grow its vocabulary without breaking ingestion.
type eventKind int

const (
	eventUnknown eventKind = iota
	eventPaymentIntentSucceeded
	eventPaymentIntentProcessing
	eventPaymentIntentFailed
	eventPaymentIntentCanceled
	eventSubscriptionCreated
	eventSubscriptionUpdated
	eventSubscriptionDeleted
	eventInvoicePaymentSucceeded
	eventInvoicePaymentFailed
)

// webhookEvent is a verified event decoded into exactly one typed payload.
type webhookEvent struct {
	id      string
	evtType string
	kind    eventKind

	paymentIntent *stripe.PaymentIntent
	subscription  *stripe.Subscription
	invoice       *stripe.Invoice
}

func parseEvent(event stripe.Event) (*webhookEvent, error) {
	we := &webhookEvent{
		id:      event.ID,
		evtType: string(event.Type),
	}

	switch event.Type {
	case "payment_intent.succeeded":
		we.kind = eventPaymentIntentSucceeded
	case "payment_intent.processing":
		we.kind = eventPaymentIntentProcessing
	case "payment_intent.payment_failed":
		we.kind = eventPaymentIntentFailed
	case "payment_intent.canceled":
		we.kind = eventPaymentIntentCanceled
	case "customer.subscription.created":
		we.kind = eventSubscriptionCreated
	case "customer.subscription.updated":
		we.kind = eventSubscriptionUpdated
	case "customer.subscription.deleted":
		we.kind = eventSubscriptionDeleted
	case "invoice.payment_succeeded":
		we.kind = eventInvoicePaymentSucceeded
	case "invoice.payment_failed":
		we.kind = eventInvoicePaymentFailed
	default:
		we.kind = eventUnknown
		return we, nil
	}

	switch we.kind {
	case eventPaymentIntentSucceeded, eventPaymentIntentProcessing,
		eventPaymentIntentFailed, eventPaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent payload: %w", err)
		}
		we.paymentIntent = &pi

	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription payload: %w", err)
		}
		we.subscription = &sub

	case eventInvoicePaymentSucceeded, eventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice payload: %w", err)
		}
		we.invoice = &inv
	}

	return we, nil
}
