package storage

import (
	"context"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopcore/orderpay/internal/types/payment"
	"github.com/shopcore/orderpay/internal/types/user"
)

// UserRepository handles account records.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	FindByLogin(ctx context.Context, login string) (*user.User, error)
}

// OrderRepository handles orders and their owned child records.
type OrderRepository interface {
	// CreateOrder inserts the order, its items, the shipping snapshot and a
	// Pending payment record in a single transaction.
	CreateOrder(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error
	FindOrderByID(ctx context.Context, orderID int64) (*order.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]order.Item, error)
	GetShippingSnapshot(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error)
	ListAllOrders(ctx context.Context) ([]order.Order, error)
	OrderStats(ctx context.Context) (*order.Stats, error)

	SetOrderStatus(ctx context.Context, orderID int64, status order.OrderStatus) error
	// UpdateOrderStatusIf transitions from -> to in one conditional UPDATE.
	// Returns false when the order was no longer in the expected status.
	UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error)

	HideOrderForUser(ctx context.Context, orderID int64) error
	HideOrderForAdmin(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error

	// MarkOrderPaid updates the payment record and the order together:
	// payment status, order payment_status, and paid_at if still unset.
	MarkOrderPaid(ctx context.Context, orderID int64, paidAt time.Time) error
}

// PaymentRepository handles the local mirrors of external payment intents.
type PaymentRepository interface {
	CreatePaymentRecord(ctx context.Context, p *payment.Record) error
	FindPaymentByOrder(ctx context.Context, orderID int64) (*payment.Record, error)
	AttachIntent(ctx context.Context, orderID int64, intentID, clientSecret string) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error
	DeletePaymentRecord(ctx context.Context, orderID int64) error
}

// Storage bundles all repositories.
type Storage interface {
	UserRepository
	OrderRepository
	PaymentRepository

	Ping(ctx context.Context) error
	Close() error
}
