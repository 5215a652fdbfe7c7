package purchasing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pharmapos/pharmapos/internal/finance"
	"github.com/pharmapos/pharmapos/internal/inventory"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// amountEpsilon absorbs float drift when comparing payment totals.
const amountEpsilon = 1e-9

// AuditPort records who performed purchasing mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PaymentsPort answers payment aggregates outside a transaction.
type PaymentsPort interface {
	SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error)
}

// Service manages the purchase order lifecycle: item composition, inventory
// receipt and incremental payment tracking.
type Service struct {
	repo     RepositoryPort
	ledger   *inventory.Ledger
	payments PaymentsPort
	audit    AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, payments PaymentsPort, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, payments: payments, audit: audit}
}

// CreateOrder opens a purchase order. Stock is received immediately for every
// item; there is no separate goods-received step. The order rows, the lot
// increments and the total are one transaction.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if err := validateOrderInput(input); err != nil {
		return PurchaseOrder{}, err
	}

	order := PurchaseOrder{
		Code:          strings.TrimSpace(input.Code),
		SupplierID:    input.SupplierID,
		UserID:        input.UserID,
		OrderDate:     input.OrderDate,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
		PaymentStatus: StatusUnpaid,
	}
	if input.InitialStatus != "" {
		order.PaymentStatus = input.InitialStatus
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = time.Now()
	}

	items := make([]PurchaseOrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, PurchaseOrderItem{
			ProductID:     in.ProductID,
			ProductUnitID: in.ProductUnitID,
			Quantity:      in.Quantity,
			CostPrice:     in.CostPrice,
			BatchNumber:   in.BatchNumber,
			ExpiryDate:    in.ExpiryDate,
		})
		order.TotalAmount += in.Quantity * in.CostPrice
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id

		inv := tx.Inventory()
		for i := range items {
			items[i].PurchaseOrderID = id
			itemID, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID

			_, err = s.ledger.Receive(ctx, inv, inventory.ReceiveInput{
				ProductID:     items[i].ProductID,
				ProductUnitID: items[i].ProductUnitID,
				Quantity:      items[i].Quantity,
				BatchNumber:   items[i].BatchNumber,
				ExpiryDate:    items[i].ExpiryDate,
			})
			if err != nil {
				return fmt.Errorf("item %d (product %d): %w", i+1, items[i].ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Items = items

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.UserID,
			Action:   "purchasing:create",
			Entity:   "purchase_order",
			EntityID: fmt.Sprintf("%d", order.ID),
			Meta: map[string]any{
				"code":         order.Code,
				"total_amount": order.TotalAmount,
				"items":        len(items),
			},
		})
	}
	return order, nil
}

// AddItem appends a line to an unlocked order, receives its stock and
// recomputes the order total, all in one transaction.
func (s *Service) AddItem(ctx context.Context, orderID int64, input ItemInput, actorID int64) (PurchaseOrderItem, error) {
	if err := validateItem(input); err != nil {
		return PurchaseOrderItem{}, err
	}

	item := PurchaseOrderItem{
		PurchaseOrderID: orderID,
		ProductID:       input.ProductID,
		ProductUnitID:   input.ProductUnitID,
		Quantity:        input.Quantity,
		CostPrice:       input.CostPrice,
		BatchNumber:     input.BatchNumber,
		ExpiryDate:      input.ExpiryDate,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == StatusPaid {
			return ErrOrderLocked
		}

		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id

		if _, err := s.ledger.Receive(ctx, tx.Inventory(), inventory.ReceiveInput{
			ProductID:     item.ProductID,
			ProductUnitID: item.ProductUnitID,
			Quantity:      item.Quantity,
			BatchNumber:   item.BatchNumber,
			ExpiryDate:    item.ExpiryDate,
		}); err != nil {
			return err
		}
		return s.recomputeTotal(ctx, tx, orderID)
	})
	if err != nil {
		return PurchaseOrderItem{}, err
	}

	s.recordAudit(ctx, actorID, "purchasing:add_item", orderID, map[string]any{"item_id": item.ID})
	return item, nil
}

// RemoveItem deletes a line from an unlocked order and recomputes the total.
// Stock received for the line is not reversed; corrections go through a
// manual inventory adjustment.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == StatusPaid {
			return ErrOrderLocked
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		return s.recomputeTotal(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "purchasing:remove_item", orderID, map[string]any{"item_id": itemID})
	return nil
}

// RecordPayment settles part of the order balance. The EXPENSE ledger entry
// and the status advance share the order's row lock, so concurrent payments
// cannot overdraw the balance.
func (s *Service) RecordPayment(ctx context.Context, orderID int64, input PaymentInput) (PaymentStatus, error) {
	if input.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	var newStatus PaymentStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == StatusPaid {
			return ErrOrderLocked
		}

		paid, err := tx.Finance().SumPaymentsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		remaining := order.TotalAmount - paid
		if input.Amount > remaining+amountEpsilon {
			return fmt.Errorf("%w: %.2f remaining, %.2f offered", ErrOverpayment, remaining, input.Amount)
		}

		description := input.Description
		if description == "" {
			description = "Payment for " + order.Code
		}
		if _, err := tx.Finance().InsertTransaction(ctx, finance.Transaction{
			Date:            time.Now(),
			Type:            finance.TypeExpense,
			Amount:          input.Amount,
			Description:     description,
			UserID:          input.UserID,
			RelatedType:     finance.RelatedPurchase,
			PurchaseOrderID: orderID,
		}); err != nil {
			return err
		}

		newStatus = StatusPartial
		if math.Abs(remaining-input.Amount) <= amountEpsilon {
			newStatus = StatusPaid
		}
		// Status never regresses.
		if newStatus.rank() < order.PaymentStatus.rank() {
			newStatus = order.PaymentStatus
		}
		if newStatus == order.PaymentStatus {
			return nil
		}
		return tx.UpdateStatus(ctx, orderID, newStatus)
	})
	if err != nil {
		return "", err
	}

	s.recordAudit(ctx, input.UserID, "purchasing:payment", orderID, map[string]any{
		"amount": input.Amount,
		"status": string(newStatus),
	})
	return newStatus, nil
}

// TotalPaid sums the order's EXPENSE ledger entries.
func (s *Service) TotalPaid(ctx context.Context, orderID int64) (float64, error) {
	if orderID <= 0 {
		return 0, ErrNotFound
	}
	return s.payments.SumPaymentsForOrder(ctx, orderID)
}

// Remaining returns the unpaid balance of an order.
func (s *Service) Remaining(ctx context.Context, orderID int64) (float64, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return 0, err
	}
	paid, err := s.payments.SumPaymentsForOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return order.TotalAmount - paid, nil
}

// Get loads one purchase order with items.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns purchase orders with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, shared.Pagination, error) {
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recomputeTotal(ctx context.Context, tx TxRepository, orderID int64) error {
	total, err := tx.SumItemAmounts(ctx, orderID)
	if err != nil {
		return err
	}
	return tx.UpdateTotal(ctx, orderID, total)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}

func validateOrderInput(input CreateOrderInput) error {
	if strings.TrimSpace(input.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if input.SupplierID <= 0 {
		return fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	if input.UserID <= 0 {
		return fmt.Errorf("%w: user is required", ErrValidation)
	}
	switch input.InitialStatus {
	case "", StatusUnpaid, StatusPartial, StatusPaid:
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, input.InitialStatus)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, item := range input.Items {
		if err := validateItem(item); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return nil
}

func validateItem(item ItemInput) error {
	if item.ProductID <= 0 || item.ProductUnitID <= 0 {
		return fmt.Errorf("%w: product and unit are required", ErrValidation)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if item.CostPrice < 0 {
		return fmt.Errorf("%w: cost price cannot be negative", ErrValidation)
	}
	return nil
}
