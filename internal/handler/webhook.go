package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/service"

	"github.com/labstack/echo/v4"
)

// Stripe caps webhook payloads well below this; anything bigger is junk.
const maxWebhookBodyBytes = int64(65536)

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// StripeWebhook receives signed event deliveries. The body is read raw before
// any binding: the signature covers the exact bytes on the wire and any
// transformation first would invalidate it.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	sigHeader := c.Request().Header.Get("Stripe-Signature")

	err = h.webhookService.HandleWebhook(ctx, sigHeader, body)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrWebhookSecretMissing):
			log.Printf("webhook rejected: %v", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "webhook not configured")
		case errors.Is(err, client.ErrInvalidSignature):
			log.Printf("webhook rejected: %v", err)
			return echo.NewHTTPError(http.StatusBadRequest, "signature verification failed")
		default:
			// 5xx so Stripe redelivers; every handler is idempotent.
			return err
		}
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
