package purchasing

import (
	"errors"
	"time"
)

// PaymentStatus tracks how much of a purchase order has been settled.
// Transitions are monotonic: UNPAID, then PARTIAL, then PAID.
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "UNPAID"
	StatusPartial PaymentStatus = "PARTIAL"
	StatusPaid    PaymentStatus = "PAID"
)

// rank orders payment statuses for the monotonicity guard.
func (s PaymentStatus) rank() int {
	switch s {
	case StatusPartial:
		return 1
	case StatusPaid:
		return 2
	default:
		return 0
	}
}

// PurchaseOrder is a stock-receipt order. TotalAmount is always the sum of
// quantity times cost price over the current item set.
type PurchaseOrder struct {
	ID            int64               `json:"id"`
	Code          string              `json:"code"`
	SupplierID    int64               `json:"supplier_id"`
	UserID        int64               `json:"user_id"`
	OrderDate     time.Time           `json:"order_date"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentStatus PaymentStatus       `json:"payment_status"`
	PaymentMethod string              `json:"payment_method"`
	Notes         string              `json:"notes"`
	Items         []PurchaseOrderItem `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// PurchaseOrderItem is one ordered line. Batch and expiry are optional and
// flow through to the inventory lot created on receipt.
type PurchaseOrderItem struct {
	ID              int64     `json:"id"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	ProductID       int64     `json:"product_id"`
	ProductUnitID   int64     `json:"product_unit_id"`
	Quantity        float64   `json:"quantity"`
	CostPrice       float64   `json:"cost_price"`
	BatchNumber     string    `json:"batch_number,omitempty"`
	ExpiryDate      time.Time `json:"expiry_date,omitempty"`
}

// ItemInput describes one line submitted to CreateOrder or AddItem.
type ItemInput struct {
	ProductID     int64
	ProductUnitID int64
	Quantity      float64
	CostPrice     float64
	BatchNumber   string
	ExpiryDate    time.Time
}

// CreateOrderInput carries everything needed to open a purchase order.
// InitialStatus defaults to UNPAID when empty.
type CreateOrderInput struct {
	Code          string
	SupplierID    int64
	UserID        int64
	OrderDate     time.Time
	PaymentMethod string
	Notes         string
	InitialStatus PaymentStatus
	Items         []ItemInput
}

// PaymentInput describes one incremental payment.
type PaymentInput struct {
	Amount        float64
	PaymentMethod string
	Description   string
	UserID        int64
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Status     PaymentStatus
	SupplierID int64
	From       time.Time
	To         time.Time
	Search     string
	Page       int
	PerPage    int
}

// Sentinel errors surfaced by the purchasing engine.
var (
	ErrValidation    = errors.New("purchasing: validation failed")
	ErrDuplicateCode = errors.New("purchasing: order code already used")
	ErrNotFound      = errors.New("purchasing: purchase order not found")
	ErrItemNotFound  = errors.New("purchasing: order item not found")
	ErrOrderLocked   = errors.New("purchasing: order is fully paid")
	ErrOverpayment   = errors.New("purchasing: payment exceeds remaining balance")
)
