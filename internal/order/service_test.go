package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
)

type mockOrderRepository struct {
	getByIDFunc     func(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error)
	getStatusFunc   func(ctx context.Context, orderID uuid.UUID) (order.Status, error)
	getByUserIDFunc func(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	updateFunc      func(ctx context.Context, orderID uuid.UUID, from, to order.Status) error
}

func (m *mockOrderRepository) GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, userID, orderID)
}

func (m *mockOrderRepository) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (order.Status, error) {
	return m.getStatusFunc(ctx, orderID)
}

func (m *mockOrderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return m.getByUserIDFunc(ctx, userID)
}

func (m *mockOrderRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to order.Status) error {
	return m.updateFunc(ctx, orderID, from, to)
}

func statusRepo(current order.Status, updated *bool) *mockOrderRepository {
	return &mockOrderRepository{
		getStatusFunc: func(context.Context, uuid.UUID) (order.Status, error) { return current, nil },
		updateFunc: func(_ context.Context, _ uuid.UUID, from, _ order.Status) error {
			if from != current {
				return order.ErrStatusChanged
			}
			*updated = true
			return nil
		},
	}
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name        string
		current     order.Status
		next        order.Status
		wantErrIs   error
		wantUpdated bool
	}{
		{name: "pending_to_paid", current: order.StatusPending, next: order.StatusPaid, wantUpdated: true},
		{name: "pending_to_cancelled", current: order.StatusPending, next: order.StatusCancelled, wantUpdated: true},
		{name: "paid_to_shipped", current: order.StatusPaid, next: order.StatusShipped, wantUpdated: true},
		{name: "paid_to_cancelled", current: order.StatusPaid, next: order.StatusCancelled, wantUpdated: true},
		{name: "shipped_to_delivered", current: order.StatusShipped, next: order.StatusDelivered, wantUpdated: true},
		{name: "same_status_is_noop", current: order.StatusPaid, next: order.StatusPaid},
		{name: "pending_to_shipped", current: order.StatusPending, next: order.StatusShipped, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "shipped_to_cancelled", current: order.StatusShipped, next: order.StatusCancelled, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "delivered_is_terminal", current: order.StatusDelivered, next: order.StatusPending, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "cancelled_is_terminal", current: order.StatusCancelled, next: order.StatusPaid, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "unknown_status", current: order.StatusPending, next: "refunded", wantErrIs: order.ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			svc := order.NewService(statusRepo(tt.current, &updated))

			err := svc.UpdateOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), tt.next)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdated, updated)
		})
	}
}

func TestOrderService_UpdateOrderStatus_NotFound(t *testing.T) {
	svc := order.NewService(&mockOrderRepository{
		getStatusFunc: func(context.Context, uuid.UUID) (order.Status, error) { return "", order.ErrOrderNotFound },
	})

	err := svc.UpdateOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), order.StatusPaid)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderService_GetOrder(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())
	want := &order.Order{
		ID:          orderID,
		UserID:      userID,
		Status:      order.StatusPending,
		TotalAmount: decimal.RequireFromString("59.98"),
		ItemCount:   2,
	}

	svc := order.NewService(&mockOrderRepository{
		getByIDFunc: func(_ context.Context, u, o uuid.UUID) (*order.Order, error) {
			if u != userID || o != orderID {
				return nil, order.ErrOrderNotFound
			}
			return want, nil
		},
	})

	got, err := svc.GetOrder(context.Background(), userID, orderID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetOrder(context.Background(), uuid.Must(uuid.NewV4()), orderID)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderService_ListOrders_RepositoryFailure(t *testing.T) {
	dbErr := errors.New("connection refused")
	svc := order.NewService(&mockOrderRepository{
		getByUserIDFunc: func(context.Context, uuid.UUID) ([]order.Order, error) { return nil, dbErr },
	})

	_, err := svc.ListOrders(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, dbErr)
}
