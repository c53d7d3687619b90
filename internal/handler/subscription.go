package handler

import (
	"errors"
	"net/http"
	"stripe-integration-demo/internal/dto"
	"stripe-integration-demo/internal/middleware"
	"stripe-integration-demo/internal/service"

	"github.com/labstack/echo/v4"
)

type SubscriptionHandler struct {
	subService service.SubscriptionService
}

func NewSubscriptionHandler(subService service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subService: subService,
	}
}

func (h *SubscriptionHandler) Subscribe(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req dto.SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.PriceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing price id")
	}

	result, err := h.subService.Subscribe(ctx, userID, req.PriceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req dto.CancelSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.subService.Cancel(ctx, userID, req.Immediate); err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			return echo.NewHTTPError(http.StatusConflict, "no active subscription")
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func (h *SubscriptionHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	result, err := h.subService.Status(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
