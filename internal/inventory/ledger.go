package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxRepository exposes lot operations bound to an enclosing transaction. The
// sales and purchasing engines obtain one from their own transactional
// repositories so stock mutations commit or roll back with the invoice or
// purchase order that caused them.
type TxRepository interface {
	GetLotForUpdate(ctx context.Context, productID, productUnitID int64, batchNumber string, expiry NullableTime) (Lot, error)
	GetLotByIDForUpdate(ctx context.Context, id int64) (Lot, error)
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	UpdateLotQuantity(ctx context.Context, id int64, quantity float64) error
}

// Ledger holds the stock mutation rules. It is the only component permitted
// to change lot quantities; both engines and the standalone Service route
// every movement through it.
type Ledger struct{}

// NewLedger builds Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Receive increments the matching lot or creates a new one. Lots sharing
// product, unit, batch and expiry merge by addition.
func (l *Ledger) Receive(ctx context.Context, tx TxRepository, input ReceiveInput) (Lot, error) {
	if input.Quantity <= 0 {
		return Lot{}, ErrInvalidQuantity
	}
	if input.ProductID == 0 || input.ProductUnitID == 0 {
		return Lot{}, errors.New("inventory: product and unit required")
	}

	lot, err := tx.GetLotForUpdate(ctx, input.ProductID, input.ProductUnitID, input.BatchNumber, NullableTime{Time: input.ExpiryDate, Valid: !input.ExpiryDate.IsZero()})
	switch {
	case err == nil:
		lot.Quantity += input.Quantity
		if err := tx.UpdateLotQuantity(ctx, lot.ID, lot.Quantity); err != nil {
			return Lot{}, err
		}
		return lot, nil
	case errors.Is(err, ErrLotNotFound):
		lot = Lot{
			ProductID:     input.ProductID,
			ProductUnitID: input.ProductUnitID,
			Quantity:      input.Quantity,
			BatchNumber:   input.BatchNumber,
			ExpiryDate:    input.ExpiryDate,
		}
		id, err := tx.InsertLot(ctx, lot)
		if err != nil {
			return Lot{}, err
		}
		lot.ID = id
		return lot, nil
	default:
		return Lot{}, err
	}
}

// Consume decrements the addressed lot in place. The quantity check and the
// decrement happen under a row lock so concurrent sales cannot drive a lot
// negative. The row is kept even when it reaches zero.
func (l *Ledger) Consume(ctx context.Context, tx TxRepository, input ConsumeInput) (Lot, error) {
	if input.Quantity <= 0 {
		return Lot{}, ErrInvalidQuantity
	}

	var lot Lot
	var err error
	if input.LotID != 0 {
		lot, err = tx.GetLotByIDForUpdate(ctx, input.LotID)
	} else {
		if input.ProductID == 0 || input.ProductUnitID == 0 {
			return Lot{}, errors.New("inventory: product and unit required")
		}
		lot, err = tx.GetLotForUpdate(ctx, input.ProductID, input.ProductUnitID, input.BatchNumber, NullableTime{Time: input.ExpiryDate, Valid: !input.ExpiryDate.IsZero()})
	}
	if err != nil {
		return Lot{}, err
	}
	if input.ProductID != 0 && lot.ProductID != input.ProductID {
		return Lot{}, fmt.Errorf("%w: lot %d does not belong to product %d", ErrLotNotFound, lot.ID, input.ProductID)
	}

	if lot.Quantity < input.Quantity {
		return Lot{}, fmt.Errorf("%w: lot %d holds %.4f, requested %.4f", ErrInsufficientStock, lot.ID, lot.Quantity, input.Quantity)
	}

	lot.Quantity -= input.Quantity
	if err := tx.UpdateLotQuantity(ctx, lot.ID, lot.Quantity); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// NullableTime distinguishes "no expiry" from a zero timestamp when matching
// lot identity in SQL.
type NullableTime struct {
	Time  time.Time
	Valid bool
}
