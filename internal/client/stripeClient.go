package client

import (
	"context"
	"errors"
	"fmt"
	"stripe-integration-demo/internal/config"

	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	// ErrInvalidSignature means the payload did not verify against the
	// configured endpoint secret. No state may be mutated after this.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrWebhookSecretMissing means no endpoint secret is configured at all.
	ErrWebhookSecretMissing = errors.New("stripe webhook secret not configured")

	// ErrProcessorUnavailable covers any failed call to the Stripe API.
	ErrProcessorUnavailable = errors.New("stripe unavailable")
)

type StripeClient interface {
	// VerifyWebhookSignature must be called on the exact raw request body.
	VerifyWebhookSignature(payload []byte, sigHeader string) (stripe.Event, error)

	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	GetPaymentMethod(ctx context.Context, id string) (*stripe.PaymentMethod, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	GetPrice(ctx context.Context, id string) (*stripe.Price, error)

	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID string, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID, userID string) (*stripe.Subscription, error)
	CancelSubscriptionNow(ctx context.Context, subscriptionID string) error
	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

type stripeClientImpl struct {
	api           *stripeclient.API
	webhookSecret string
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, nil)

	return &stripeClientImpl{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

func processorErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProcessorUnavailable, op, err)
}

func (c *stripeClientImpl) VerifyWebhookSignature(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, ErrWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		c.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return event, nil
}

func (c *stripeClientImpl) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, processorErr("get payment intent", err)
	}
	return pi, nil
}

func (c *stripeClientImpl) GetPaymentMethod(ctx context.Context, id string) (*stripe.PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := c.api.PaymentMethods.Get(id, params)
	if err != nil {
		return nil, processorErr("get payment method", err)
	}
	return pm, nil
}

func (c *stripeClientImpl) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, processorErr("get subscription", err)
	}
	return sub, nil
}

func (c *stripeClientImpl) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	price, err := c.api.Prices.Get(id, params)
	if err != nil {
		return nil, processorErr("get price", err)
	}
	return price, nil
}

func (c *stripeClientImpl) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", processorErr("create customer", err)
	}
	return cust.ID, nil
}

func (c *stripeClientImpl) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	if _, err := c.api.Customers.Del(customerID, params); err != nil {
		return processorErr("delete customer", err)
	}
	return nil
}

func (c *stripeClientImpl) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, processorErr("create payment intent", err)
	}
	return pi, nil
}

func (c *stripeClientImpl) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID, userID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
	}

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, processorErr("create subscription", err)
	}
	return sub, nil
}

func (c *stripeClientImpl) CancelSubscriptionNow(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return processorErr("cancel subscription", err)
	}
	return nil
}

func (c *stripeClientImpl) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return processorErr("cancel subscription at period end", err)
	}
	return nil
}
