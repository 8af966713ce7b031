package payment

import (
	"context"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopcore/orderpay/internal/types/payment"
)

type OrderRepository interface {
	FindOrderByID(ctx context.Context, orderID int64) (*order.Order, error)
	MarkOrderPaid(ctx context.Context, orderID int64, paidAt time.Time) error
}

type PaymentRepository interface {
	CreatePaymentRecord(ctx context.Context, p *payment.Record) error
	FindPaymentByOrder(ctx context.Context, orderID int64) (*payment.Record, error)
	AttachIntent(ctx context.Context, orderID int64, intentID, clientSecret string) error
	UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error
	DeletePaymentRecord(ctx context.Context, orderID int64) error
}
