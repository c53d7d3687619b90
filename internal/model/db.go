package model

import "time"

// Order lifecycle. Completed, failed and canceled are terminal: once an order
// reaches one of them no later write may change its status again.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusCanceled  = "canceled"
)

// Payment attempt outcomes, mirrored into the ledger.
const (
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusProcessing = "processing"
	PaymentStatusFailed     = "failed"
	PaymentStatusCanceled   = "canceled"
)

// Subscription statuses mirror Stripe's vocabulary exactly; we never invent
// local states.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
)

type Product struct {
	ID       string `gorm:"primaryKey;size:64;not null"` // product sku
	Name     string `gorm:"size:255;not null"`
	Price    int64  `gorm:"not null"` // minor units (cents)
	Currency string `gorm:"size:8;not null"`
}

// User owns the subscription descriptor inline: a user has at most one
// subscription at a time and every lifecycle event rewrites these fields.
type User struct {
	ID                     string `gorm:"primaryKey;size:36;not null"`
	Email                  string `gorm:"size:255;uniqueIndex;not null"`
	StripeCustomerID       string `gorm:"size:64;index"`
	DefaultPaymentMethodID string `gorm:"size:64"`

	SubscriptionID        string `gorm:"size:64;index"`
	SubscriptionStatus    string `gorm:"size:32"`
	SubscriptionPriceID   string `gorm:"size:64"`
	SubscriptionPeriodEnd *time.Time
	CancelAtPeriodEnd     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentRecord is the append-only ledger of payment attempts. Rows are never
// updated or deleted. The (user_id, payment_intent_id) unique key plus the
// unique invoice_id make duplicate webhook deliveries insert no-ops.
type PaymentRecord struct {
	ID              uint    `gorm:"primaryKey"`
	UserID          string  `gorm:"size:36;not null;uniqueIndex:idx_user_intent,priority:1"`
	PaymentIntentID string  `gorm:"size:64;not null;uniqueIndex:idx_user_intent,priority:2"`
	InvoiceID       *string `gorm:"size:64;uniqueIndex"` // set for subscription billing only
	Amount          int64   `gorm:"not null"`
	Currency        string  `gorm:"size:8;not null"`
	Status          string  `gorm:"size:32;index;not null"`
	ErrorMessage    string  `gorm:"size:512"`
	CardLast4       string  `gorm:"size:8"`
	OrderRef        string  `gorm:"size:36;index"`
	SubscriptionID  string  `gorm:"size:64"`
	CreatedAt       time.Time
}

type Address struct {
	Line1      string `gorm:"size:255"`
	Line2      string `gorm:"size:255"`
	City       string `gorm:"size:128"`
	State      string `gorm:"size:128"`
	PostalCode string `gorm:"size:32"`
	Country    string `gorm:"size:2"`
}

type Order struct {
	// Application-generated reference (uuid), the stable key both the
	// synchronous checkout path and webhook events address the order by.
	OrderRef        string `gorm:"primaryKey;size:36;not null"`
	UserID          string `gorm:"size:36;index;not null"`
	PaymentIntentID string `gorm:"size:64;index"`
	Amount          int64  `gorm:"not null"` // sum of item subtotals
	Currency        string `gorm:"size:8;not null"`
	Status          string `gorm:"size:32;index;not null"`
	PaymentStatus   string `gorm:"size:32"` // mirrors the Stripe payment intent status

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddress  Address `gorm:"embedded;embeddedPrefix:billing_"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.order_ref
	OrderRef string `gorm:"size:36;index;not null"`
	// product name snapshot at checkout time
	Name      string `gorm:"size:255;not null"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int32  `gorm:"not null"`
	Subtotal  int64  `gorm:"not null"`

	CreatedAt time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// Terminal reports whether an order status permits no further transition.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCanceled:
		return true
	}
	return false
}
