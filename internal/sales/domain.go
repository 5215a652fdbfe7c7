package sales

import (
	"errors"
	"time"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	// StatusCompleted marks a committed sale.
	StatusCompleted InvoiceStatus = "COMPLETED"
	// StatusCancelled marks a voided sale. Cancellation does not restock
	// the consumed lots.
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is a completed or cancelled sale.
type Invoice struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	UserID        int64         `json:"user_id"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	TotalAmount   float64       `json:"total_amount"`
	Discount      float64       `json:"discount"`
	FinalAmount   float64       `json:"final_amount"`
	PaymentMethod string        `json:"payment_method"`
	Status        InvoiceStatus `json:"status"`
	Items         []InvoiceItem `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InvoiceItem is one sold line. Amount is always recomputed server side as
// quantity times unit price.
type InvoiceItem struct {
	ID            int64   `json:"id"`
	InvoiceID     int64   `json:"invoice_id"`
	ProductID     int64   `json:"product_id"`
	ProductUnitID int64   `json:"product_unit_id"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Amount        float64 `json:"amount"`
}

// Line is one cart entry submitted to CreateInvoice. The lot selector is
// optional: a line may target a specific lot by ID, or by batch/expiry, or
// leave all three empty to hit the product's unbatched lot.
type Line struct {
	ProductID     int64
	ProductUnitID int64
	Quantity      float64
	UnitPrice     float64
	LotID         int64
	BatchNumber   string
	ExpiryDate    time.Time
}

// CreateInvoiceInput carries everything needed to commit a sale.
type CreateInvoiceInput struct {
	Code          string
	CustomerName  string
	CustomerPhone string
	UserID        int64
	InvoiceDate   time.Time
	PaymentMethod string
	Discount      float64
	Lines         []Line
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status  InvoiceStatus
	From    time.Time
	To      time.Time
	Search  string
	Page    int
	PerPage int
}

// Sentinel errors surfaced by the sales engine.
var (
	ErrValidation     = errors.New("sales: validation failed")
	ErrDuplicateCode  = errors.New("sales: invoice code already used")
	ErrNotFound       = errors.New("sales: invoice not found")
	ErrNotCancellable = errors.New("sales: invoice cannot be cancelled")
)
