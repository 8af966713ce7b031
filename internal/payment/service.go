package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopcore/orderpay/internal/types/payment"
	"github.com/shopcore/orderpay/internal/util/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment record not found")
	ErrNotOwner           = errors.New("order belongs to another user")
	ErrInvalidAmount      = errors.New("amount must be a positive number of minor units")
	ErrAmountMismatch     = errors.New("amount does not match the order grand total")
	ErrOrderCancelled     = errors.New("cannot pay a cancelled order")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrUnknownIntentState = errors.New("unknown payment intent status")
	ErrStatusNotConfirmed = errors.New("processor does not confirm the reported status")

	// ErrProcessor wraps any transport or API failure talking to the
	// processor. It must never be read as "payment failed": the intent's
	// true state is re-checked on the next handle read.
	ErrProcessor = errors.New("payment processor unavailable")
)

type Notifier interface {
	PaymentReceived(orderID, userID int64, amount decimal.Decimal)
}

// Handle is what the client needs to complete payment.
type Handle struct {
	OrderID      int64  `json:"order_id"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type Service struct {
	orders    OrderRepository
	payments  PaymentRepository
	processor ProcessorClient
	notifier  Notifier
	currency  string
}

func NewService(orders OrderRepository, payments PaymentRepository, processor ProcessorClient, notifier Notifier, currency string) *Service {
	return &Service{
		orders:    orders,
		payments:  payments,
		processor: processor,
		notifier:  notifier,
		currency:  currency,
	}
}

// GetOrCreateHandle returns the order's live payment handle, minting an
// external intent only when none exists or the previous one is terminally
// dead. The processor is queried on every call with a stored handle; the
// local record is never trusted on its own. Repeated calls converge on at
// most one live intent per order.
func (s *Service) GetOrCreateHandle(ctx context.Context, requesterID, orderID, amountMinor int64) (*Handle, error) {
	o, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, ErrNotOwner
	}
	if o.Status == order.StatusCancelled {
		return nil, ErrOrderCancelled
	}
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountMinor != money.ToMinorUnits(o.GrandTotal) {
		return nil, ErrAmountMismatch
	}

	rec, err := s.payments.FindPaymentByOrder(ctx, orderID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		rec = nil
	}

	if rec != nil && rec.IntentID != "" {
		intent, err := s.processor.RetrieveIntent(ctx, rec.IntentID)
		switch {
		case errors.Is(err, ErrIntentNotFound):
			// Handle unknown to the processor: terminal, replace it.
			if err := s.payments.DeletePaymentRecord(ctx, orderID); err != nil {
				return nil, err
			}
			rec = nil
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
		case intent.Status == payment.IntentSucceeded:
			if err := s.healPaid(ctx, o); err != nil {
				return nil, err
			}
			return &Handle{
				OrderID:      orderID,
				IntentID:     rec.IntentID,
				ClientSecret: rec.ClientSecret,
				Status:       payment.IntentSucceeded,
			}, nil
		case payment.IntentTerminalFailure(intent.Status):
			if err := s.payments.DeletePaymentRecord(ctx, orderID); err != nil {
				return nil, err
			}
			rec = nil
		default:
			// Still pending or awaiting action: same handle, no new intent.
			return &Handle{
				OrderID:      orderID,
				IntentID:     rec.IntentID,
				ClientSecret: rec.ClientSecret,
				Status:       intent.Status,
			}, nil
		}
	}

	// No live intent. An order already marked paid must never be charged
	// again through a fresh intent.
	if o.PaymentStatus == payment.StatusPaid {
		return nil, ErrAlreadyPaid
	}
	return s.mintIntent(ctx, orderID, amountMinor, rec != nil)
}

// healPaid repairs local state lagging behind a succeeded intent.
func (s *Service) healPaid(ctx context.Context, o *order.Order) error {
	if o.PaymentStatus == payment.StatusPaid && o.PaidAt != nil {
		return nil
	}
	if err := s.orders.MarkOrderPaid(ctx, o.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.notifier.PaymentReceived(o.ID, o.UserID, o.GrandTotal)
	return nil
}

func (s *Service) mintIntent(ctx context.Context, orderID, amountMinor int64, haveRecord bool) (*Handle, error) {
	key := uuid.NewString()
	intent, err := s.processor.CreateIntent(ctx, amountMinor, s.currency, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	if haveRecord {
		err = s.payments.AttachIntent(ctx, orderID, intent.ID, intent.ClientSecret)
	} else {
		now := time.Now().UTC()
		err = s.payments.CreatePaymentRecord(ctx, &payment.Record{
			OrderID:      orderID,
			Method:       "card",
			Status:       payment.StatusPending,
			IntentID:     intent.ID,
			ClientSecret: intent.ClientSecret,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err != nil {
		return nil, err
	}
	return &Handle{
		OrderID:      orderID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       intent.Status,
	}, nil
}

// ReconcileStatus applies a processor status callback. A reported success is
// re-verified against the processor before anything is marked paid; the
// callback sender is authenticated but still not the authority.
func (s *Service) ReconcileStatus(ctx context.Context, orderID int64, status string) error {
	rec, err := s.payments.FindPaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return err
	}

	switch status {
	case payment.IntentSucceeded:
		if rec.IntentID == "" {
			return ErrPaymentNotFound
		}
		intent, err := s.processor.RetrieveIntent(ctx, rec.IntentID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProcessor, err)
		}
		if intent.Status != payment.IntentSucceeded {
			return fmt.Errorf("%w: processor reports %s", ErrStatusNotConfirmed, intent.Status)
		}
		o, err := s.orders.FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		return s.healPaid(ctx, o)
	case payment.IntentCanceled:
		return s.payments.UpdatePaymentStatus(ctx, orderID, payment.StatusFailed)
	case payment.IntentProcessing, payment.IntentRequiresAction, payment.IntentRequiresPaymentMethod:
		return s.payments.UpdatePaymentStatus(ctx, orderID, payment.StatusPending)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntentState, status)
	}
}
