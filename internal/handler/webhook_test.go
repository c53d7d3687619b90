package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/config"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"
	"stripe-integration-demo/internal/service"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header the way Stripe does: an
// HMAC-SHA256 over "<timestamp>.<payload>" keyed by the endpoint secret.
func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type webhookTestEnv struct {
	handler     *WebhookHandler
	userRepo    repository.UserRepository
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	db          *gorm.DB
}

func newWebhookTestEnv(t *testing.T, webhookSecret string) *webhookTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.WebhookEvent{},
	))

	// real client: signature verification is pure HMAC, no network involved
	stripeClient := client.NewStripeClient(&config.Stripe{
		SecretKey:     "sk_test_x",
		WebhookSecret: webhookSecret,
	})

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	ledger := service.NewLedgerService(stripeClient, userRepo, paymentRepo, orderRepo)
	subscription := service.NewSubscriptionService(stripeClient, userRepo)
	webhook := service.NewWebhookService(stripeClient, userRepo, eventRepo, ledger, subscription)

	return &webhookTestEnv{
		handler:     NewWebhookHandler(webhook),
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		db:          db,
	}
}

func (e *webhookTestEnv) deliver(t *testing.T, payload []byte, sigHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", sigHeader)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	return rec, e.handler.StripeWebhook(c)
}

func TestStripeWebhook_SignedDeliveryProcessed(t *testing.T) {
	e := newWebhookTestEnv(t, testWebhookSecret)
	ctx := context.Background()

	require.NoError(t, e.userRepo.Create(ctx, &model.User{
		ID:               "user-1",
		Email:            "user-1@example.com",
		StripeCustomerID: "cus_1",
	}))
	require.NoError(t, e.orderRepo.Create(ctx, e.db, &model.Order{
		OrderRef:        "ref-1",
		UserID:          "user-1",
		PaymentIntentID: "pi_1",
		Amount:          2599,
		Currency:        "usd",
		Status:          model.OrderStatusPending,
	}))

	// no payment_method in the payload, so processing never reaches the API
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_1",
				"amount": 2599,
				"currency": "usd",
				"status": "succeeded",
				"customer": "cus_1",
				"metadata": {"user_id": "user-1", "order_ref": "ref-1"}
			}
		}
	}`)

	rec, err := e.deliver(t, payload, signPayload(testWebhookSecret, payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received": true}`, rec.Body.String())

	order, err := e.orderRepo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, order.Status)

	records, err := e.paymentRepo.ListByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(2599), records[0].Amount)
}

func TestStripeWebhook_InvalidSignatureRejected(t *testing.T) {
	e := newWebhookTestEnv(t, testWebhookSecret)

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded", "data": {"object": {}}}`)

	_, err := e.deliver(t, payload, signPayload("whsec_wrong_secret", payload))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestStripeWebhook_TamperedPayloadRejected(t *testing.T) {
	e := newWebhookTestEnv(t, testWebhookSecret)

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded", "data": {"object": {"amount": 2599}}}`)
	sig := signPayload(testWebhookSecret, payload)
	tampered := bytes.Replace(payload, []byte("2599"), []byte("1"), 1)

	_, err := e.deliver(t, tampered, sig)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestStripeWebhook_MissingSecretIsServerFault(t *testing.T) {
	e := newWebhookTestEnv(t, "")

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded", "data": {"object": {}}}`)

	_, err := e.deliver(t, payload, signPayload(testWebhookSecret, payload))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusInternalServerError, httpErr.Code)
}
