package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// Known reports whether s is one of the four order statuses.
func (s OrderStatus) Known() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses admit no further transition.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Order struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"-"`
	Status         OrderStatus     `db:"status" json:"status"`
	PaymentStatus  string          `db:"payment_status" json:"payment_status"`
	ItemsTotal     decimal.Decimal `db:"items_total" json:"items_total"`
	Tax            decimal.Decimal `db:"tax" json:"tax"`
	ShippingFee    decimal.Decimal `db:"shipping_fee" json:"shipping_fee"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grand_total"`
	HiddenForUser  bool            `db:"hidden_for_user" json:"-"`
	HiddenForAdmin bool            `db:"hidden_for_admin" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// Item is a snapshot of a product at purchase time. The price is copied,
// never joined back to the catalog.
type Item struct {
	ID        int64           `db:"id" json:"-"`
	OrderID   int64           `db:"order_id" json:"-"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Title     string          `db:"title" json:"title"`
	ImageURL  string          `db:"image_url" json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// ShippingSnapshot is the buyer's shipping details copied at checkout,
// one-to-one with an order.
type ShippingSnapshot struct {
	OrderID      int64  `db:"order_id" json:"-"`
	FullName     string `db:"full_name" json:"full_name"`
	AddressLine1 string `db:"address_line1" json:"address_line1"`
	AddressLine2 string `db:"address_line2" json:"address_line2,omitempty"`
	City         string `db:"city" json:"city"`
	State        string `db:"state" json:"state"`
	Country      string `db:"country" json:"country"`
	PostalCode   string `db:"postal_code" json:"postal_code"`
	Phone        string `db:"phone" json:"phone"`
}

// Stats are the admin-list aggregates, computed in SQL.
type Stats struct {
	CountByStatus map[OrderStatus]int64 `json:"count_by_status"`
	PaidRevenue   decimal.Decimal       `json:"paid_revenue"`
}
