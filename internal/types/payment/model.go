package payment

import "time"

// Record mirrors an external payment intent, one live record per order.
type Record struct {
	ID           int64     `db:"id" json:"-"`
	OrderID      int64     `db:"order_id" json:"-"`
	Method       string    `db:"method" json:"method"`
	Status       string    `db:"status" json:"status"`
	IntentID     string    `db:"intent_id" json:"-"`
	ClientSecret string    `db:"client_secret" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Local payment statuses stored on the record and mirrored onto the order.
const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
	StatusFailed  = "Failed"
)

// Processor intent statuses, as reported by the external API.
const (
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentRequiresAction        = "requires_action"
	IntentProcessing            = "processing"
	IntentSucceeded             = "succeeded"
	IntentCanceled              = "canceled"
)

// IntentTerminalFailure reports whether the processor status means the
// intent can never succeed and must be replaced.
func IntentTerminalFailure(status string) bool {
	return status == IntentCanceled
}
