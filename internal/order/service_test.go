package order

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type mockRepo struct {
	createOrderFn         func(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error
	findOrderByIDFn       func(ctx context.Context, orderID int64) (*order.Order, error)
	listOrderItemsFn      func(ctx context.Context, orderID int64) ([]order.Item, error)
	getShippingSnapshotFn func(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error)
	listOrdersByUserFn    func(ctx context.Context, userID int64) ([]order.Order, error)
	listAllOrdersFn       func(ctx context.Context) ([]order.Order, error)
	orderStatsFn          func(ctx context.Context) (*order.Stats, error)
	setOrderStatusFn      func(ctx context.Context, orderID int64, status order.OrderStatus) error
	updateStatusIfFn      func(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error)
	hideForUserFn         func(ctx context.Context, orderID int64) error
	hideForAdminFn        func(ctx context.Context, orderID int64) error
	deleteOrderFn         func(ctx context.Context, orderID int64) error
}

func (m *mockRepo) CreateOrder(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error {
	return m.createOrderFn(ctx, o, items, ship)
}
func (m *mockRepo) FindOrderByID(ctx context.Context, orderID int64) (*order.Order, error) {
	return m.findOrderByIDFn(ctx, orderID)
}
func (m *mockRepo) ListOrderItems(ctx context.Context, orderID int64) ([]order.Item, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockRepo) GetShippingSnapshot(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error) {
	return m.getShippingSnapshotFn(ctx, orderID)
}
func (m *mockRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return m.listOrdersByUserFn(ctx, userID)
}
func (m *mockRepo) ListAllOrders(ctx context.Context) ([]order.Order, error) {
	return m.listAllOrdersFn(ctx)
}
func (m *mockRepo) OrderStats(ctx context.Context) (*order.Stats, error) {
	return m.orderStatsFn(ctx)
}
func (m *mockRepo) SetOrderStatus(ctx context.Context, orderID int64, status order.OrderStatus) error {
	return m.setOrderStatusFn(ctx, orderID, status)
}
func (m *mockRepo) UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
	return m.updateStatusIfFn(ctx, orderID, from, to)
}
func (m *mockRepo) HideOrderForUser(ctx context.Context, orderID int64) error {
	return m.hideForUserFn(ctx, orderID)
}
func (m *mockRepo) HideOrderForAdmin(ctx context.Context, orderID int64) error {
	return m.hideForAdminFn(ctx, orderID)
}
func (m *mockRepo) DeleteOrder(ctx context.Context, orderID int64) error {
	return m.deleteOrderFn(ctx, orderID)
}

type mockNotifier struct {
	mu     sync.Mutex
	placed []int64
}

func (m *mockNotifier) OrderPlaced(orderID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, orderID)
}

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func nowPtr() *time.Time {
	t := time.Now().UTC()
	return &t
}

func validRequest() *PlaceOrderRequest {
	return &PlaceOrderRequest{
		Items: []ItemRequest{
			{ProductID: 10, Title: "mug", UnitPrice: d("50.00"), Quantity: 2},
			{ProductID: 11, Title: "coaster", UnitPrice: d("20.00"), Quantity: 1},
		},
		Tax:         d("12.00"),
		ShippingFee: d("5.00"),
		GrandTotal:  d("137.00"),
		Shipping: ShippingRequest{
			FullName:     "Jane Roe",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			State:        "IL",
			Country:      "US",
			PostalCode:   "62701",
			Phone:        "+1-555-0100",
		},
	}
}

func TestPlaceOrderEmptyItems(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockNotifier{})
	req := validRequest()
	req.Items = nil
	_, err := svc.PlaceOrder(context.Background(), 1, req)
	assert.Equal(t, ErrEmptyOrder, err)
}

func TestPlaceOrderInvalidItem(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockNotifier{})

	req := validRequest()
	req.Items[0].Quantity = 0
	_, err := svc.PlaceOrder(context.Background(), 1, req)
	assert.Equal(t, ErrInvalidItem, err)

	req = validRequest()
	req.Items[1].UnitPrice = d("0")
	_, err = svc.PlaceOrder(context.Background(), 1, req)
	assert.Equal(t, ErrInvalidItem, err)
}

func TestPlaceOrderIncompleteShipping(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockNotifier{})
	req := validRequest()
	req.Shipping.PostalCode = ""
	_, err := svc.PlaceOrder(context.Background(), 1, req)
	assert.Equal(t, ErrInvalidShipping, err)
}

func TestPlaceOrderTotalMismatch(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockNotifier{})
	req := validRequest()
	req.GrandTotal = d("140.00")
	_, err := svc.PlaceOrder(context.Background(), 1, req)
	assert.Equal(t, ErrTotalMismatch, err)
}

func TestPlaceOrderComputesTotals(t *testing.T) {
	var stored *order.Order
	var storedItems []order.Item
	repo := &mockRepo{
		createOrderFn: func(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error {
			o.ID = 42
			stored = o
			storedItems = items
			return nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewService(repo, notifier)

	o, err := svc.PlaceOrder(context.Background(), 7, validRequest())
	assert.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.True(t, d("120.00").Equal(stored.ItemsTotal))
	assert.True(t, d("137.00").Equal(stored.GrandTotal))
	assert.Len(t, storedItems, 2)
	assert.True(t, d("50.00").Equal(storedItems[0].UnitPrice))
	assert.Equal(t, []int64{42}, notifier.placed)
}

func TestPlaceOrderRepoFailure(t *testing.T) {
	repo := &mockRepo{
		createOrderFn: func(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error {
			return errors.New("db error")
		},
	}
	notifier := &mockNotifier{}
	svc := NewService(repo, notifier)
	_, err := svc.PlaceOrder(context.Background(), 7, validRequest())
	assert.Error(t, err)
	assert.Empty(t, notifier.placed, "no notification without a commit")
}

func TestGetOrderScoping(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing}, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID int64) ([]order.Item, error) {
			return []order.Item{{OrderID: orderID, ProductID: 1, UnitPrice: d("100.00"), Quantity: 1}}, nil
		},
		getShippingSnapshotFn: func(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error) {
			return &order.ShippingSnapshot{OrderID: orderID, FullName: "Jane Roe"}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})

	_, err := svc.GetOrder(context.Background(), 8, false, 1)
	assert.Equal(t, ErrNotOwner, err)

	detail, err := svc.GetOrder(context.Background(), 7, false, 1)
	assert.NoError(t, err)
	assert.Len(t, detail.Items, 1)

	detail, err = svc.GetOrder(context.Background(), 8, true, 1)
	assert.NoError(t, err)
	assert.Equal(t, "Jane Roe", detail.Shipping.FullName)
}

func TestGetOrderHiddenForUser(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, HiddenForUser: true}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	_, err := svc.GetOrder(context.Background(), 7, false, 1)
	assert.Equal(t, ErrOrderNotFound, err)
}

func TestGetOrderNotFound(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := NewService(repo, &mockNotifier{})
	_, err := svc.GetOrder(context.Background(), 7, false, 1)
	assert.Equal(t, ErrOrderNotFound, err)
}

// The item row carries its own price copy; the read path never consults the
// catalog, so a later price change cannot leak into a placed order.
func TestGetOrderItemPriceIsSnapshot(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7}, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID int64) ([]order.Item, error) {
			return []order.Item{{OrderID: orderID, ProductID: 1, UnitPrice: d("100.00"), Quantity: 1}}, nil
		},
		getShippingSnapshotFn: func(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error) {
			return &order.ShippingSnapshot{OrderID: orderID}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})

	detail, err := svc.GetOrder(context.Background(), 7, false, 1)
	assert.NoError(t, err)
	assert.True(t, d("100.00").Equal(detail.Items[0].UnitPrice))
}

func TestSetStatusUnknownValue(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockNotifier{})
	err := svc.SetStatus(context.Background(), 1, order.OrderStatus("Refunded"))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestSetStatusAnyKnownTransition(t *testing.T) {
	var got order.OrderStatus
	repo := &mockRepo{
		setOrderStatusFn: func(ctx context.Context, orderID int64, status order.OrderStatus) error {
			got = status
			return nil
		},
	}
	svc := NewService(repo, &mockNotifier{})

	// Backwards transitions are an allowed operator override.
	err := svc.SetStatus(context.Background(), 1, order.StatusProcessing)
	assert.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got)
}

func TestSetStatusNotFound(t *testing.T) {
	repo := &mockRepo{
		setOrderStatusFn: func(ctx context.Context, orderID int64, status order.OrderStatus) error {
			return sql.ErrNoRows
		},
	}
	svc := NewService(repo, &mockNotifier{})
	err := svc.SetStatus(context.Background(), 1, order.StatusShipped)
	assert.Equal(t, ErrOrderNotFound, err)
}

func TestCancelGuards(t *testing.T) {
	for _, status := range []order.OrderStatus{order.StatusShipped, order.StatusDelivered, order.StatusCancelled} {
		updated := false
		repo := &mockRepo{
			findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
				return &order.Order{ID: orderID, UserID: 7, Status: status}, nil
			},
			updateStatusIfFn: func(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
				updated = true
				return true, nil
			},
		}
		svc := NewService(repo, &mockNotifier{})
		err := svc.Cancel(context.Background(), 7, 1)
		assert.ErrorIs(t, err, ErrNotCancellable)
		assert.Contains(t, err.Error(), string(status), "error must name the conflicting status")
		assert.False(t, updated, "no write for status %s", status)
	}
}

func TestCancelProcessing(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing}, nil
		},
		updateStatusIfFn: func(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
			assert.Equal(t, order.StatusProcessing, from)
			assert.Equal(t, order.StatusCancelled, to)
			return true, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.NoError(t, svc.Cancel(context.Background(), 7, 1))
}

func TestCancelWrongOwner(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.Equal(t, ErrNotOwner, svc.Cancel(context.Background(), 8, 1))
}

func TestCancelLosesRace(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing}, nil
		},
		updateStatusIfFn: func(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
			return false, nil // admin shipped it between the read and the update
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.Equal(t, ErrStatusConflict, svc.Cancel(context.Background(), 7, 1))
}

func TestDeleteForUserShipped(t *testing.T) {
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusShipped}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	err := svc.DeleteForUser(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestDeleteForUserTerminalHidesOnly(t *testing.T) {
	hidden := false
	updated := false
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusDelivered}, nil
		},
		updateStatusIfFn: func(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
			updated = true
			return true, nil
		},
		hideForUserFn: func(ctx context.Context, orderID int64) error {
			hidden = true
			return nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.NoError(t, svc.DeleteForUser(context.Background(), 7, 1))
	assert.True(t, hidden)
	assert.False(t, updated)
}

func TestDeleteForAdminPaidHidesOnly(t *testing.T) {
	hidden := false
	deleted := false
	paidAt := nowPtr()
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing, PaidAt: paidAt}, nil
		},
		hideForAdminFn: func(ctx context.Context, orderID int64) error {
			hidden = true
			return nil
		},
		deleteOrderFn: func(ctx context.Context, orderID int64) error {
			deleted = true
			return nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.NoError(t, svc.DeleteForAdmin(context.Background(), 1))
	assert.True(t, hidden)
	assert.False(t, deleted)
}

func TestDeleteForAdminUnpaidHardDeletes(t *testing.T) {
	deleted := false
	repo := &mockRepo{
		findOrderByIDFn: func(ctx context.Context, orderID int64) (*order.Order, error) {
			return &order.Order{ID: orderID, UserID: 7, Status: order.StatusProcessing}, nil
		},
		deleteOrderFn: func(ctx context.Context, orderID int64) error {
			deleted = true
			return nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	assert.NoError(t, svc.DeleteForAdmin(context.Background(), 1))
	assert.True(t, deleted)
}

func TestAdminList(t *testing.T) {
	repo := &mockRepo{
		listAllOrdersFn: func(ctx context.Context) ([]order.Order, error) {
			return []order.Order{{ID: 1}, {ID: 2}}, nil
		},
		orderStatsFn: func(ctx context.Context) (*order.Stats, error) {
			return &order.Stats{
				CountByStatus: map[order.OrderStatus]int64{order.StatusProcessing: 2},
				PaidRevenue:   d("137.00"),
			}, nil
		},
	}
	svc := NewService(repo, &mockNotifier{})
	listing, err := svc.AdminList(context.Background())
	assert.NoError(t, err)
	assert.Len(t, listing.Orders, 2)
	assert.Equal(t, int64(2), listing.Stats.CountByStatus[order.StatusProcessing])
}
