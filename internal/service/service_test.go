package service

import (
	"context"
	"encoding/json"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Product{},
		&model.User{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.WebhookEvent{},
	))

	return db
}

// fakeStripeClient satisfies client.StripeClient without the network. The
// verify step hands back the injected event so dispatch tests drive the real
// services against real (sqlite-backed) repositories.
type fakeStripeClient struct {
	event     stripe.Event
	verifyErr error

	paymentIntent    *stripe.PaymentIntent
	paymentMethod    *stripe.PaymentMethod
	paymentMethodErr error
	subscription     *stripe.Subscription
	createSubErr     error

	canceledNow         []string
	canceledAtPeriodEnd []string
}

var _ client.StripeClient = (*fakeStripeClient)(nil)

func (f *fakeStripeClient) VerifyWebhookSignature(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.verifyErr != nil {
		return stripe.Event{}, f.verifyErr
	}
	return f.event, nil
}

func (f *fakeStripeClient) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if f.paymentIntent == nil {
		return nil, client.ErrProcessorUnavailable
	}
	return f.paymentIntent, nil
}

func (f *fakeStripeClient) GetPaymentMethod(ctx context.Context, id string) (*stripe.PaymentMethod, error) {
	if f.paymentMethodErr != nil {
		return nil, f.paymentMethodErr
	}
	if f.paymentMethod == nil {
		return nil, client.ErrProcessorUnavailable
	}
	return f.paymentMethod, nil
}

func (f *fakeStripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if f.subscription == nil {
		return nil, client.ErrProcessorUnavailable
	}
	return f.subscription, nil
}

func (f *fakeStripeClient) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	return &stripe.Price{ID: id}, nil
}

func (f *fakeStripeClient) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	return "cus_test", nil
}

func (f *fakeStripeClient) DeleteCustomer(ctx context.Context, customerID string) error {
	return nil
}

func (f *fakeStripeClient) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{
		ID:           "pi_new",
		Amount:       amount,
		Currency:     stripe.Currency(currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "pi_new_secret",
		Metadata:     metadata,
	}, nil
}

func (f *fakeStripeClient) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID, userID string) (*stripe.Subscription, error) {
	if f.createSubErr != nil {
		return nil, f.createSubErr
	}
	if f.subscription != nil {
		return f.subscription, nil
	}
	return &stripe.Subscription{
		ID:     "sub_new",
		Status: stripe.SubscriptionStatusActive,
	}, nil
}

func (f *fakeStripeClient) CancelSubscriptionNow(ctx context.Context, subscriptionID string) error {
	f.canceledNow = append(f.canceledNow, subscriptionID)
	return nil
}

func (f *fakeStripeClient) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	f.canceledAtPeriodEnd = append(f.canceledAtPeriodEnd, subscriptionID)
	return nil
}

// testEnv wires real services over sqlite repos with a fake processor.
type testEnv struct {
	db           *gorm.DB
	stripe       *fakeStripeClient
	userRepo     repository.UserRepository
	paymentRepo  repository.PaymentRepository
	orderRepo    repository.OrderRepository
	eventRepo    repository.WebhookEventRepository
	productRepo  repository.ProductRepository
	ledger       LedgerService
	subscription SubscriptionService
	webhook      WebhookService
	checkout     CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	fake := &fakeStripeClient{}

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	productRepo := repository.NewProductRepository(db)

	ledger := NewLedgerService(fake, userRepo, paymentRepo, orderRepo)
	subscription := NewSubscriptionService(fake, userRepo)
	webhook := NewWebhookService(fake, userRepo, eventRepo, ledger, subscription)
	checkout := NewCheckoutService(db, fake, userRepo, productRepo, orderRepo, ledger)

	return &testEnv{
		db:           db,
		stripe:       fake,
		userRepo:     userRepo,
		paymentRepo:  paymentRepo,
		orderRepo:    orderRepo,
		eventRepo:    eventRepo,
		productRepo:  productRepo,
		ledger:       ledger,
		subscription: subscription,
		webhook:      webhook,
		checkout:     checkout,
	}
}

func (e *testEnv) createUser(t *testing.T, id, customerID string) *model.User {
	t.Helper()

	user := &model.User{
		ID:               id,
		Email:            id + "@example.com",
		StripeCustomerID: customerID,
	}
	require.NoError(t, e.userRepo.Create(context.Background(), user))
	return user
}

func (e *testEnv) createPendingOrder(t *testing.T, userID, orderRef, intentID string, amount int64) {
	t.Helper()

	require.NoError(t, e.orderRepo.Create(context.Background(), e.db, &model.Order{
		OrderRef:        orderRef,
		UserID:          userID,
		PaymentIntentID: intentID,
		Amount:          amount,
		Currency:        "usd",
		Status:          model.OrderStatusPending,
	}))
}

func stripeEvent(t *testing.T, id, evtType string, object map[string]interface{}) stripe.Event {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)

	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(evtType),
		Data: &stripe.EventData{Raw: raw},
	}
}
