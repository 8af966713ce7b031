package order

import (
	"context"

	"github.com/shopcore/orderpay/internal/types/order"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error
	FindOrderByID(ctx context.Context, orderID int64) (*order.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]order.Item, error)
	GetShippingSnapshot(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error)
	ListAllOrders(ctx context.Context) ([]order.Order, error)
	OrderStats(ctx context.Context) (*order.Stats, error)
	SetOrderStatus(ctx context.Context, orderID int64, status order.OrderStatus) error
	UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error)
	HideOrderForUser(ctx context.Context, orderID int64) error
	HideOrderForAdmin(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error
}
