package dto

import (
	"stripe-integration-demo/internal/model"
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	Sku      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a *Address) ToModel() model.Address {
	return model.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type ProductResponse struct {
	Sku          string `json:"sku"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	DisplayPrice string `json:"display_price"`
	Currency     string `json:"currency"`
}

type CheckoutRequest struct {
	Items           []*Item `json:"items"`
	ShippingAddress Address `json:"shipping_address"`
	BillingAddress  Address `json:"billing_address"`
}

type CheckoutResponse struct {
	OrderRef      string `json:"order_ref"`
	ClientSecret  string `json:"client_secret"`
	Amount        int64  `json:"amount"`
	DisplayAmount string `json:"display_amount"`
	Currency      string `json:"currency"`
}

type OrderItemResponse struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type OrderResponse struct {
	OrderRef      string               `json:"order_ref"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	Amount        int64                `json:"amount"`
	DisplayAmount string               `json:"display_amount"`
	Currency      string               `json:"currency"`
	Items         []*OrderItemResponse `json:"items"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type RegisterRequest struct {
	Email string `json:"email"`
}

type UserResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
}

type PaymentRecordResponse struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	InvoiceID       string    `json:"invoice_id,omitempty"`
	Amount          int64     `json:"amount"`
	DisplayAmount   string    `json:"display_amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CardLast4       string    `json:"card_last4,omitempty"`
	OrderRef        string    `json:"order_ref,omitempty"`
	SubscriptionID  string    `json:"subscription_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type ProfileResponse struct {
	User     *UserResponse               `json:"user"`
	Payments []*PaymentRecordResponse    `json:"payments"`
	Orders   []*OrderResponse            `json:"orders"`
	Sub      *SubscriptionStatusResponse `json:"subscription,omitempty"`
}

type SubscribeRequest struct {
	PriceID string `json:"price_id"`
}

type SubscribeResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

type SubscriptionStatusResponse struct {
	SubscriptionID    string `json:"subscription_id,omitempty"`
	Status            string `json:"status,omitempty"`
	PriceID           string `json:"price_id,omitempty"`
	CurrentPeriodEnd  string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// DisplayAmount renders minor units as a decimal string, e.g. 2599 -> "25.99".
func DisplayAmount(amount int64) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func NewOrderResponse(order *model.Order, items []*model.OrderItem) *OrderResponse {
	itemResponses := make([]*OrderItemResponse, len(items))
	for i, item := range items {
		itemResponses[i] = &OrderItemResponse{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	return &OrderResponse{
		OrderRef:      order.OrderRef,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Amount:        order.Amount,
		DisplayAmount: DisplayAmount(order.Amount),
		Currency:      order.Currency,
		Items:         itemResponses,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func NewProfileResponse(user *model.User, payments []*model.PaymentRecord, orders []*model.Order) *ProfileResponse {
	paymentResponses := make([]*PaymentRecordResponse, len(payments))
	for i, p := range payments {
		r := &PaymentRecordResponse{
			PaymentIntentID: p.PaymentIntentID,
			Amount:          p.Amount,
			DisplayAmount:   DisplayAmount(p.Amount),
			Currency:        p.Currency,
			Status:          p.Status,
			ErrorMessage:    p.ErrorMessage,
			CardLast4:       p.CardLast4,
			OrderRef:        p.OrderRef,
			SubscriptionID:  p.SubscriptionID,
			CreatedAt:       p.CreatedAt,
		}
		if p.InvoiceID != nil {
			r.InvoiceID = *p.InvoiceID
		}
		paymentResponses[i] = r
	}

	orderResponses := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		orderResponses[i] = NewOrderResponse(o, nil)
	}

	resp := &ProfileResponse{
		User: &UserResponse{
			ID:               user.ID,
			Email:            user.Email,
			StripeCustomerID: user.StripeCustomerID,
		},
		Payments: paymentResponses,
		Orders:   orderResponses,
	}

	if user.SubscriptionID != "" {
		sub := &SubscriptionStatusResponse{
			SubscriptionID:    user.SubscriptionID,
			Status:            user.SubscriptionStatus,
			PriceID:           user.SubscriptionPriceID,
			CancelAtPeriodEnd: user.CancelAtPeriodEnd,
		}
		if user.SubscriptionPeriodEnd != nil {
			sub.CurrentPeriodEnd = user.SubscriptionPeriodEnd.UTC().Format(time.RFC3339)
		}
		resp.Sub = sub
	}

	return resp
}
