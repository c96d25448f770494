package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
	"shop_back_end/internal/store/memstore"
)

// interleavedStore runs between once after the first order read, standing in
// for a request that commits between a service's read and its write.
type interleavedStore struct {
	*memstore.Store
	between func()
}

func (s *interleavedStore) Orders() store.Orders {
	return interleavedOrders{Orders: s.Store.Orders(), s: s}
}

type interleavedOrders struct {
	store.Orders
	s *interleavedStore
}

func (o interleavedOrders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := o.Orders.FindByID(ctx, id)
	if fn := o.s.between; fn != nil {
		o.s.between = nil
		fn()
	}
	return order, err
}

func pendingOrder(t *testing.T) (*fixture, *interleavedStore, models.Order) {
	t.Helper()
	f, customer, _ := checkoutFixture(t)
	view, err := f.orders.CreateOrder(context.Background(), customer.UserID, CheckoutInput{})
	require.NoError(t, err)
	return f, &interleavedStore{Store: f.store}, view.Order
}

func TestCancelLosesToConcurrentShipment(t *testing.T) {
	f, st, order := pendingOrder(t)
	ctx := context.Background()
	at := time.Now().UTC()
	st.between = func() {
		require.NoError(t, f.store.Orders().UpdateStatus(ctx, order.ID, models.OrderPending, models.OrderConfirmed, nil, at))
		require.NoError(t, f.store.Orders().UpdateStatus(ctx, order.ID, models.OrderConfirmed, models.OrderShipped, nil, at))
	}

	orders := NewOrderService(st, f.carts)
	_, err := orders.CancelOrder(ctx, order.UserID, order.ID.Hex())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	assert.Equal(t, "CANNOT_CANCEL", apperror.From(err).Code)
	assert.Contains(t, apperror.From(err).Message, "Shipped")

	stored, err := f.store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, stored.Status)
}

func TestAdminConfirmLosesToConcurrentCancel(t *testing.T) {
	f, st, order := pendingOrder(t)
	ctx := context.Background()
	admin := f.user(t, "admin", models.RoleAdmin)
	st.between = func() {
		require.NoError(t, f.store.Orders().UpdateStatus(ctx, order.ID, models.OrderPending, models.OrderCancelled, nil, time.Now().UTC()))
	}

	orders := NewOrderService(st, f.carts)
	_, err := orders.UpdateOrderStatus(ctx, admin, order.ID.Hex(), "confirmed", nil)
	require.Error(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apperror.From(err).Code)

	stored, err := f.store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, stored.Status)
}
