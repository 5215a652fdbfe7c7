package inventory

import (
	"errors"
	"time"
)

// Lot is a distinct stock row identified by product, unit and optional
// batch/expiry. Two receipts with the same identity merge by addition; rows
// are decremented in place and survive at zero quantity.
type Lot struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	ProductUnitID int64     `json:"product_unit_id"`
	Quantity      float64   `json:"quantity"`
	BatchNumber   string    `json:"batch_number,omitempty"`
	ExpiryDate    time.Time `json:"expiry_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasExpiry reports whether the lot carries an expiry date.
func (l Lot) HasExpiry() bool {
	return !l.ExpiryDate.IsZero()
}

// ReceiveInput describes an inbound stock movement.
type ReceiveInput struct {
	ProductID     int64
	ProductUnitID int64
	Quantity      float64
	BatchNumber   string
	ExpiryDate    time.Time
}

// ConsumeInput describes an outbound stock movement. The lot is addressed by
// LotID when the cart line carries one, otherwise by the exact
// (product, unit, batch, expiry) identity. Absent batch/expiry match lots
// stored without them.
type ConsumeInput struct {
	LotID         int64
	ProductID     int64
	ProductUnitID int64
	Quantity      float64
	BatchNumber   string
	ExpiryDate    time.Time
}

// LotFilter narrows lot listings.
type LotFilter struct {
	ProductID     int64
	ProductUnitID int64
	IncludeEmpty  bool
	Page          int
	PerPage       int
}

// ExpiringLot pairs a lot with its product identity for reporting.
type ExpiringLot struct {
	Lot         Lot    `json:"lot"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
}

// LowStockEntry reports a product whose base-unit total fell at or below its
// reorder level.
type LowStockEntry struct {
	ProductID    int64   `json:"product_id"`
	ProductCode  string  `json:"product_code"`
	ProductName  string  `json:"product_name"`
	BaseQuantity float64 `json:"base_quantity"`
	ReorderLevel float64 `json:"reorder_level"`
}

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrLotNotFound indicates no lot matches the requested identity.
var ErrLotNotFound = errors.New("inventory: lot not found")

// ErrInsufficientStock indicates the resolved lot cannot satisfy the request.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")
