package server

import (
	"stripe-integration-demo/internal/handler"
	appmiddleware "stripe-integration-demo/internal/middleware"
	"stripe-integration-demo/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo                *echo.Echo
	webhookHandler      *handler.WebhookHandler
	checkoutHandler     *handler.CheckoutHandler
	subscriptionHandler *handler.SubscriptionHandler
	userHandler         *handler.UserHandler
}

func NewServer(
	jwtSecret string,
	webhookService service.WebhookService,
	checkoutService service.CheckoutService,
	subscriptionService service.SubscriptionService,
	userService service.UserService,
) *Server {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:                e,
		webhookHandler:      handler.NewWebhookHandler(webhookService),
		checkoutHandler:     handler.NewCheckoutHandler(checkoutService),
		subscriptionHandler: handler.NewSubscriptionHandler(subscriptionService),
		userHandler:         handler.NewUserHandler(userService),
	}

	s.setupRoutes(jwtSecret)
	return s
}

func (s *Server) setupRoutes(jwtSecret string) {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/users/register", s.userHandler.Register)
	api.GET("/products", s.checkoutHandler.ListProducts)

	// -------- stripe webhooks --------
	// No auth middleware here: the signature over the raw body is the auth.
	api.POST("/stripe/webhook", s.webhookHandler.StripeWebhook)

	// -------- authenticated --------
	auth := appmiddleware.AuthMiddleware(jwtSecret)

	me := api.Group("/me", auth)
	me.GET("", s.userHandler.GetProfile)
	me.DELETE("", s.userHandler.DeleteAccount)

	checkout := api.Group("/checkout", auth)
	checkout.POST("", s.checkoutHandler.Checkout)
	checkout.POST("/:orderRef/complete", s.checkoutHandler.CompleteCheckout)

	orders := api.Group("/orders", auth)
	orders.GET("", s.checkoutHandler.ListOrders)
	orders.GET("/:orderRef", s.checkoutHandler.GetOrder)

	subs := api.Group("/subscriptions", auth)
	subs.POST("", s.subscriptionHandler.Subscribe)
	subs.POST("/cancel", s.subscriptionHandler.Cancel)
	subs.GET("/status", s.subscriptionHandler.Status)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
