package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pharmapos/pharmapos/internal/finance"
	"github.com/pharmapos/pharmapos/internal/inventory"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// AuditPort records who performed sales mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service turns validated cart lines into durable invoices.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	audit  AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit}
}

// CreateInvoice commits a sale. The invoice row, its items, the stock
// decrements and the INCOME ledger entry are one transaction: if any line
// cannot be satisfied nothing is persisted.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if err := validateInput(input); err != nil {
		return Invoice{}, err
	}

	invoice := Invoice{
		Code:          strings.TrimSpace(input.Code),
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		UserID:        input.UserID,
		InvoiceDate:   input.InvoiceDate,
		Discount:      input.Discount,
		PaymentMethod: input.PaymentMethod,
		Status:        StatusCompleted,
	}
	if invoice.InvoiceDate.IsZero() {
		invoice.InvoiceDate = time.Now()
	}

	// Line amounts are recomputed here; client-supplied totals are not
	// trusted.
	items := make([]InvoiceItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		amount := line.Quantity * line.UnitPrice
		items = append(items, InvoiceItem{
			ProductID:     line.ProductID,
			ProductUnitID: line.ProductUnitID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			Amount:        amount,
		})
		invoice.TotalAmount += amount
	}
	invoice.FinalAmount = invoice.TotalAmount - invoice.Discount
	if invoice.FinalAmount < 0 {
		invoice.FinalAmount = 0
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id

		inv := tx.Inventory()
		for i, line := range input.Lines {
			items[i].InvoiceID = id
			itemID, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID

			_, err = s.ledger.Consume(ctx, inv, inventory.ConsumeInput{
				LotID:         line.LotID,
				ProductID:     line.ProductID,
				ProductUnitID: line.ProductUnitID,
				Quantity:      line.Quantity,
				BatchNumber:   line.BatchNumber,
				ExpiryDate:    line.ExpiryDate,
			})
			if err != nil {
				return fmt.Errorf("line %d (product %d): %w", i+1, line.ProductID, err)
			}
		}

		_, err = tx.Finance().InsertTransaction(ctx, finance.Transaction{
			Date:        invoice.InvoiceDate,
			Type:        finance.TypeIncome,
			Amount:      invoice.FinalAmount,
			Description: "Sale " + invoice.Code,
			UserID:      input.UserID,
			RelatedType: finance.RelatedInvoice,
			InvoiceID:   id,
		})
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	invoice.Items = items

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.UserID,
			Action:   "sales:create",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", invoice.ID),
			Meta: map[string]any{
				"code":         invoice.Code,
				"final_amount": invoice.FinalAmount,
				"lines":        len(items),
			},
		})
	}
	return invoice, nil
}

// CancelInvoice flips a completed invoice to CANCELLED. Consumed stock is
// not returned to inventory; any correction is a manual receipt.
func (s *Service) CancelInvoice(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != StatusCompleted {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, invoice.Status)
		}
		return tx.UpdateStatus(ctx, id, StatusCancelled)
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "sales:cancel",
			Entity:   "invoice",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// Get loads one invoice with items.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns invoices with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func validateInput(input CreateInvoiceInput) error {
	if strings.TrimSpace(input.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if input.UserID <= 0 {
		return fmt.Errorf("%w: user is required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrValidation)
	}
	if input.Discount < 0 {
		return fmt.Errorf("%w: discount cannot be negative", ErrValidation)
	}
	for i, line := range input.Lines {
		if line.ProductID <= 0 || line.ProductUnitID <= 0 {
			return fmt.Errorf("%w: line %d is missing product or unit", ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d unit price cannot be negative", ErrValidation, i+1)
		}
	}
	return nil
}
