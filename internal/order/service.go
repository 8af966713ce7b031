package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopcore/orderpay/internal/types/payment"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidItem     = errors.New("invalid order item")
	ErrInvalidShipping = errors.New("incomplete shipping info")
	ErrTotalMismatch   = errors.New("grand total does not match items, tax and shipping")
	ErrOrderNotFound   = errors.New("order not found")
	ErrNotOwner        = errors.New("order belongs to another user")
	ErrUnknownStatus   = errors.New("unknown order status")
	ErrNotCancellable  = errors.New("order cannot be cancelled")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

// Notifier receives fire-and-forget events after a successful commit.
type Notifier interface {
	OrderPlaced(orderID, userID int64)
}

type ItemRequest struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	ImageURL  string          `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type ShippingRequest struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code"`
	Phone        string `json:"phone"`
}

type PlaceOrderRequest struct {
	Items       []ItemRequest   `json:"items"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Shipping    ShippingRequest `json:"shipping"`
}

// Detail is an order joined with its owned records.
type Detail struct {
	Order    order.Order             `json:"order"`
	Items    []order.Item            `json:"items"`
	Shipping *order.ShippingSnapshot `json:"shipping"`
}

type AdminListing struct {
	Orders []order.Order `json:"orders"`
	Stats  *order.Stats  `json:"stats"`
}

type Service struct {
	repo     OrderRepository
	notifier Notifier
}

func NewService(r OrderRepository, n Notifier) *Service {
	return &Service{repo: r, notifier: n}
}

// PlaceOrder validates the request, recomputes the totals server-side and
// writes the order with all child records in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest) (*order.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	subtotal := decimal.Zero
	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Quantity < 1 || !it.UnitPrice.IsPositive() {
			return nil, ErrInvalidItem
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, order.Item{
			ProductID: it.ProductID,
			Title:     it.Title,
			ImageURL:  it.ImageURL,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	if err := validateShipping(&req.Shipping); err != nil {
		return nil, err
	}
	if req.Tax.IsNegative() || req.ShippingFee.IsNegative() {
		return nil, ErrTotalMismatch
	}
	// The client-sent grand total is checked, never trusted.
	if !req.GrandTotal.Equal(subtotal.Add(req.Tax).Add(req.ShippingFee)) {
		return nil, ErrTotalMismatch
	}

	o := &order.Order{
		UserID:        userID,
		Status:        order.StatusProcessing,
		PaymentStatus: payment.StatusPending,
		ItemsTotal:    subtotal,
		Tax:           req.Tax,
		ShippingFee:   req.ShippingFee,
		GrandTotal:    req.GrandTotal,
		CreatedAt:     time.Now().UTC(),
	}
	ship := &order.ShippingSnapshot{
		FullName:     req.Shipping.FullName,
		AddressLine1: req.Shipping.AddressLine1,
		AddressLine2: req.Shipping.AddressLine2,
		City:         req.Shipping.City,
		State:        req.Shipping.State,
		Country:      req.Shipping.Country,
		PostalCode:   req.Shipping.PostalCode,
		Phone:        req.Shipping.Phone,
	}
	if err := s.repo.CreateOrder(ctx, o, items, ship); err != nil {
		return nil, err
	}
	s.notifier.OrderPlaced(o.ID, userID)
	return o, nil
}

func validateShipping(sh *ShippingRequest) error {
	for _, f := range []string{sh.FullName, sh.AddressLine1, sh.City, sh.State, sh.Country, sh.PostalCode, sh.Phone} {
		if f == "" {
			return ErrInvalidShipping
		}
	}
	return nil
}

// GetOrder returns the order joined with items and shipping, scoped to the
// owner unless the requester is an administrator.
func (s *Service) GetOrder(ctx context.Context, requesterID int64, isAdmin bool, orderID int64) (*Detail, error) {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && o.UserID != requesterID {
		return nil, ErrNotOwner
	}
	if (!isAdmin && o.HiddenForUser) || (isAdmin && o.HiddenForAdmin) {
		return nil, ErrOrderNotFound
	}

	items, err := s.repo.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ship, err := s.repo.GetShippingSnapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: *o, Items: items, Shipping: ship}, nil
}

func (s *Service) ListOrders(ctx context.Context, userID int64) ([]order.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

func (s *Service) AdminList(ctx context.Context) (*AdminListing, error) {
	orders, err := s.repo.ListAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.OrderStats(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminListing{Orders: orders, Stats: stats}, nil
}

// SetStatus is the administrator transition. Any of the four known values is
// accepted from any current state; forward-only ordering is deliberately not
// enforced so an operator can correct a mis-shipped order.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status order.OrderStatus) error {
	if !status.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if err := s.repo.SetOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

// Cancel is the customer transition, permitted only from Processing. The
// conditional update loses gracefully to a concurrent admin write.
func (s *Service) Cancel(ctx context.Context, userID, orderID int64) error {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	if o.UserID != userID {
		return ErrNotOwner
	}
	if o.Status != order.StatusProcessing {
		return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
	}
	ok, err := s.repo.UpdateOrderStatusIf(ctx, orderID, order.StatusProcessing, order.StatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStatusConflict
	}
	return nil
}

// DeleteForUser cancels a Processing order and hides it from the user's
// view; terminal orders are only hidden. A Shipped order cannot be removed.
func (s *Service) DeleteForUser(ctx context.Context, userID, orderID int64) error {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	if o.UserID != userID {
		return ErrNotOwner
	}
	switch o.Status {
	case order.StatusProcessing:
		ok, err := s.repo.UpdateOrderStatusIf(ctx, orderID, order.StatusProcessing, order.StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStatusConflict
		}
	case order.StatusShipped:
		return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
	}
	return s.repo.HideOrderForUser(ctx, orderID)
}

// DeleteForAdmin hard-deletes orders with no settlement history; paid,
// shipped or delivered orders are hidden from the admin view instead so the
// sales record survives.
func (s *Service) DeleteForAdmin(ctx context.Context, orderID int64) error {
	o, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	if o.PaidAt != nil || o.Status == order.StatusShipped || o.Status == order.StatusDelivered {
		return s.repo.HideOrderForAdmin(ctx, orderID)
	}
	return s.repo.DeleteOrder(ctx, orderID)
}
