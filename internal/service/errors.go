package service

import "errors"

// Resolution misses. Webhook dispatch logs and acknowledges these rather than
// failing the delivery: Stripe retrying forever against a record that does not
// exist locally cannot make it exist.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrOrderNotFound = errors.New("order not found")

	ErrNoActiveSubscription = errors.New("no active subscription")
)
