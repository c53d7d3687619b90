package repository

import (
	"context"
	"stripe-integration-demo/internal/model"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPendingOrder(t *testing.T, db *gorm.DB, userID, orderRef string) {
	t.Helper()

	repo := NewOrderRepository(db)
	err := repo.Create(context.Background(), db, &model.Order{
		OrderRef:        orderRef,
		UserID:          userID,
		PaymentIntentID: "pi_" + orderRef,
		Amount:          2599,
		Currency:        "usd",
		Status:          model.OrderStatusPending,
	})
	require.NoError(t, err)
}

func TestApplyOutcome_PendingToCompleted(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createPendingOrder(t, db, "user-1", "ref-1")

	err := repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusCompleted, "succeeded")
	require.NoError(t, err)

	order, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, order.Status)
	require.Equal(t, "succeeded", order.PaymentStatus)
}

func TestApplyOutcome_TerminalIsNeverOverwritten(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createPendingOrder(t, db, "user-1", "ref-1")

	require.NoError(t, repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusCompleted, "succeeded"))

	// a late failed outcome for the same order is a no-op, not an error
	require.NoError(t, repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusFailed, "requires_payment_method"))

	order, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, order.Status)
	require.Equal(t, "succeeded", order.PaymentStatus)
}

func TestApplyOutcome_RedeliveryIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createPendingOrder(t, db, "user-1", "ref-1")

	require.NoError(t, repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusCompleted, "succeeded"))
	require.NoError(t, repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusCompleted, "succeeded"))

	order, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, order.Status)
}

func TestApplyOutcome_MissingOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)

	err := repo.ApplyOutcome(context.Background(), "user-1", "no-such-ref", model.OrderStatusCompleted, "succeeded")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApplyOutcome_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createPendingOrder(t, db, "user-1", "ref-1")

	// another user's outcome cannot touch this order
	err := repo.ApplyOutcome(ctx, "user-2", "ref-1", model.OrderStatusCompleted, "succeeded")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	order, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusPending, order.Status)
}

func TestApplyOutcome_OnlyTouchesOutcomeFields(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	createPendingOrder(t, db, "user-1", "ref-1")

	before, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)

	require.NoError(t, repo.ApplyOutcome(ctx, "user-1", "ref-1", model.OrderStatusCanceled, "canceled"))

	after, err := repo.FindByRef(ctx, "user-1", "ref-1")
	require.NoError(t, err)
	require.Equal(t, before.Amount, after.Amount)
	require.Equal(t, before.PaymentIntentID, after.PaymentIntentID)
	require.Equal(t, before.Currency, after.Currency)
}
