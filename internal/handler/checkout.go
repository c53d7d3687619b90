package handler

import (
	"errors"
	"net/http"
	"stripe-integration-demo/internal/dto"
	"stripe-integration-demo/internal/middleware"
	"stripe-integration-demo/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) ListProducts(c echo.Context) error {
	result, err := h.checkoutService.ListProducts(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.Checkout(ctx, userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) CompleteCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	orderRef := c.Param("orderRef")
	if orderRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order ref")
	}

	result, err := h.checkoutService.CompleteCheckout(ctx, userID, orderRef)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	result, err := h.checkoutService.GetOrder(ctx, userID, c.Param("orderRef"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	result, err := h.checkoutService.ListOrders(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
