package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmapos/pharmapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the standalone service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindLot(ctx context.Context, productID, productUnitID int64, batchNumber string, expiry NullableTime) (Lot, error)
	ListLots(ctx context.Context, filter LotFilter) ([]Lot, int, error)
	TotalBaseQuantity(ctx context.Context, productID int64) (float64, error)
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]ExpiringLot, error)
	ListLowStock(ctx context.Context, limit int) ([]LowStockEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone inventory operations: direct receipts from
// the stock screen, lookups and reporting. Sales and purchasing drive the
// Ledger inside their own transactions instead of calling here.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit}
}

// Receive posts a direct stock receipt in its own transaction.
func (s *Service) Receive(ctx context.Context, input ReceiveInput, actorID int64) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		received, err := s.ledger.Receive(ctx, tx, input)
		if err != nil {
			return err
		}
		lot = received
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "inventory:receive",
			Entity:   "inventory_lot",
			EntityID: fmt.Sprintf("%d", lot.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"unit_id":    input.ProductUnitID,
				"qty":        input.Quantity,
				"batch":      input.BatchNumber,
			},
		})
	}
	return lot, nil
}

// FindLot returns the lot matching the exact identity, including null
// batch/expiry matching.
func (s *Service) FindLot(ctx context.Context, productID, productUnitID int64, batchNumber string, expiry time.Time) (Lot, error) {
	if productID == 0 || productUnitID == 0 {
		return Lot{}, ErrLotNotFound
	}
	return s.repo.FindLot(ctx, productID, productUnitID, batchNumber, NullableTime{Time: expiry, Valid: !expiry.IsZero()})
}

// ListLots lists lots with pagination metadata.
func (s *Service) ListLots(ctx context.Context, filter LotFilter) ([]Lot, shared.Pagination, error) {
	lots, total, err := s.repo.ListLots(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return lots, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// TotalQuantity aggregates quantity across all lots and units of a product,
// converted to base-unit equivalents.
func (s *Service) TotalQuantity(ctx context.Context, productID int64) (float64, error) {
	if productID == 0 {
		return 0, ErrLotNotFound
	}
	return s.repo.TotalBaseQuantity(ctx, productID)
}

// ListExpiring returns non-empty lots expiring before the cutoff, soonest
// first. Read-only; FEFO consumption is not enforced.
func (s *Service) ListExpiring(ctx context.Context, within time.Duration, limit int) ([]ExpiringLot, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListExpiring(ctx, time.Now().Add(within), limit)
}

// ListLowStock returns products at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListLowStock(ctx, limit)
}
