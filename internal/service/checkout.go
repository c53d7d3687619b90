package service

import (
	"context"
	"errors"
	"fmt"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/dto"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"
)

type CheckoutService interface {
	// Checkout prices the cart server-side, writes a pending order and opens
	// a payment intent tagged with the user id and order ref.
	Checkout(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)

	// CompleteCheckout is the synchronous arm of reconciliation: it reads the
	// intent back from Stripe and feeds the same ledger and order state
	// machine the webhook path uses. Whichever arm runs first wins; the other
	// becomes a no-op.
	CompleteCheckout(ctx context.Context, userID, orderRef string) (*dto.OrderResponse, error)

	GetOrder(ctx context.Context, userID, orderRef string) (*dto.OrderResponse, error)
	ListOrders(ctx context.Context, userID string) ([]*dto.OrderResponse, error)

	// ListProducts returns the catalog checkout prices against.
	ListProducts(ctx context.Context) ([]*dto.ProductResponse, error)
}

type checkoutServiceImpl struct {
	db            *gorm.DB
	stripeClient  client.StripeClient
	userRepo      repository.UserRepository
	productRepo   repository.ProductRepository
	orderRepo     repository.OrderRepository
	ledgerService LedgerService
}

func NewCheckoutService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	ledgerService LedgerService,
) CheckoutService {
	return &checkoutServiceImpl{
		db:            db,
		stripeClient:  stripeClient,
		userRepo:      userRepo,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		ledgerService: ledgerService,
	}
}

func (s *checkoutServiceImpl) Checkout(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	productIDs := make([]string, len(req.Items))
	itemQuantityMap := make(map[string]int32)
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive")
		}
		productIDs[i] = item.Sku
		itemQuantityMap[item.Sku] = item.Quantity
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	if len(products) != len(req.Items) {
		return nil, fmt.Errorf("some products not found")
	}

	orderRef := uuid.NewString()
	currency := products[0].Currency

	totalAmount := int64(0)
	orderItems := make([]*model.OrderItem, len(products))
	for i, product := range products {
		quantity := itemQuantityMap[product.ID]
		subtotal := product.Price * int64(quantity)
		totalAmount += subtotal

		orderItems[i] = &model.OrderItem{
			OrderRef:  orderRef,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Subtotal:  subtotal,
		}
	}

	pi, err := s.stripeClient.CreatePaymentIntent(ctx, totalAmount, currency, user.StripeCustomerID, map[string]string{
		"user_id":   user.ID,
		"order_ref": orderRef,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	order := &model.Order{
		OrderRef:        orderRef,
		UserID:          user.ID,
		PaymentIntentID: pi.ID,
		Amount:          totalAmount,
		Currency:        currency,
		Status:          model.OrderStatusPending,
		PaymentStatus:   string(pi.Status),
		ShippingAddress: req.ShippingAddress.ToModel(),
		BillingAddress:  req.BillingAddress.ToModel(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		OrderRef:      orderRef,
		ClientSecret:  pi.ClientSecret,
		Amount:        totalAmount,
		DisplayAmount: dto.DisplayAmount(totalAmount),
		Currency:      currency,
	}, nil
}

func (s *checkoutServiceImpl) CompleteCheckout(ctx context.Context, userID, orderRef string) (*dto.OrderResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	order, err := s.orderRepo.FindByRef(ctx, userID, orderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	pi, err := s.stripeClient.GetPaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}

	status := paymentStatusFromIntent(pi)
	if err := s.ledgerService.RecordPaymentOutcome(ctx, user, pi, status); err != nil {
		return nil, err
	}

	order, err = s.orderRepo.FindByRef(ctx, userID, orderRef)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	return s.toOrderResponse(ctx, order)
}

func (s *checkoutServiceImpl) GetOrder(ctx context.Context, userID, orderRef string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.FindByRef(ctx, userID, orderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return s.toOrderResponse(ctx, order)
}

func (s *checkoutServiceImpl) ListOrders(ctx context.Context, userID string) ([]*dto.OrderResponse, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.OrderResponse, len(orders))
	for i, order := range orders {
		r, err := s.toOrderResponse(ctx, order)
		if err != nil {
			return nil, err
		}
		resp[i] = r
	}

	return resp, nil
}

func (s *checkoutServiceImpl) ListProducts(ctx context.Context) ([]*dto.ProductResponse, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	resp := make([]*dto.ProductResponse, len(products))
	for i, p := range products {
		resp[i] = &dto.ProductResponse{
			Sku:          p.ID,
			Name:         p.Name,
			Price:        p.Price,
			DisplayPrice: dto.DisplayAmount(p.Price),
			Currency:     p.Currency,
		}
	}

	return resp, nil
}

func (s *checkoutServiceImpl) toOrderResponse(ctx context.Context, order *model.Order) (*dto.OrderResponse, error) {
	items, err := s.orderRepo.GetOrderItems(ctx, order.OrderRef)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	return dto.NewOrderResponse(order, items), nil
}

// paymentStatusFromIntent maps the live intent status to the ledger taxonomy.
// Intents parked on a requires_* status after a declined attempt count as
// failed; anything else still in flight counts as processing.
func paymentStatusFromIntent(pi *stripe.PaymentIntent) string {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return model.PaymentStatusCanceled
	case stripe.PaymentIntentStatusProcessing:
		return model.PaymentStatusProcessing
	default:
		if pi.LastPaymentError != nil {
			return model.PaymentStatusFailed
		}
		return model.PaymentStatusProcessing
	}
}
