package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopcore/orderpay/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced     = "order_placed"
	EventPaymentReceived = "payment_received"
)

type Event struct {
	Type    string `json:"type"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Amount  string `json:"amount,omitempty"`
}

type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// HTTPSink posts events to the notification collaborator.
type HTTPSink struct {
	Client  *http.Client
	Address string
}

func (s *HTTPSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	url := fmt.Sprintf("%s/api/events", s.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher fans events out to the sink through a worker pool. Delivery is
// fire-and-forget: a full queue drops the event with a log line, and a failed
// delivery is logged and not retried. Nothing here may block a request.
type Dispatcher struct {
	sink    Sink
	workers int
	events  chan Event
}

func NewDispatcher(sink Sink, workers int) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		workers: workers,
		events:  make(chan Event, workers*3),
	}
}

// Run starts the workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 1; i <= d.workers; i++ {
		go func(id int) {
			workerLoop(ctx, id, d.sink, d.events)
			done <- struct{}{}
		}(i)
	}
	// The channel is never closed: requests may still Publish while the
	// server drains during shutdown. Workers exit on ctx alone.
	for i := 0; i < d.workers; i++ {
		<-done
	}
}

func workerLoop(ctx context.Context, id int, sink Sink, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sink.Deliver(ctx, ev); err != nil {
				logger.Log.Warn("notification delivery failed",
					zap.Int("worker", id),
					zap.String("type", ev.Type),
					zap.Int64("order_id", ev.OrderID),
					zap.Error(err),
				)
				continue
			}
			logger.Log.Info("notification delivered",
				zap.Int("worker", id),
				zap.String("type", ev.Type),
				zap.Int64("order_id", ev.OrderID),
			)
		}
	}
}

// Publish enqueues without blocking; events are dropped when the queue is
// full.
func (d *Dispatcher) Publish(ev Event) {
	select {
	case d.events <- ev:
	default:
		logger.Log.Warn("notification queue full, dropping event",
			zap.String("type", ev.Type),
			zap.Int64("order_id", ev.OrderID),
		)
	}
}

func (d *Dispatcher) OrderPlaced(orderID, userID int64) {
	d.Publish(Event{Type: EventOrderPlaced, OrderID: orderID, UserID: userID})
}

func (d *Dispatcher) PaymentReceived(orderID, userID int64, amount decimal.Decimal) {
	d.Publish(Event{Type: EventPaymentReceived, OrderID: orderID, UserID: userID, Amount: amount.String()})
}
