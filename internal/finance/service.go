package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pharmapos/pharmapos/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes the financial ledger read side plus manual entries. INCOME
// and EXPENSE entries for invoices and purchase orders are posted by the
// sales and purchasing engines inside their own transactions, never here.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	audit  AuditPort
	group  singleflight.Group
	maxAge time.Duration
}

// NewService builds Service. cache may be nil; summaries are then computed on
// every call.
func NewService(repo RepositoryPort, cache *redis.Client, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, maxAge: 2 * time.Minute}
}

// RecordManual appends an OTHER ledger entry.
func (s *Service) RecordManual(ctx context.Context, input ManualEntryInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if input.Type != TypeIncome && input.Type != TypeExpense {
		return Transaction{}, fmt.Errorf("%w: unknown type %q", ErrValidation, input.Type)
	}
	if strings.TrimSpace(input.Description) == "" {
		return Transaction{}, fmt.Errorf("%w: description required", ErrValidation)
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}
	entry := Transaction{
		Date:        input.Date,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		UserID:      input.UserID,
		RelatedType: RelatedOther,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.UserID,
			Action:   "finance:manual",
			Entity:   "transaction",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta:     map[string]any{"type": entry.Type, "amount": entry.Amount},
		})
	}
	return entry, nil
}

// List returns ledger entries with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, shared.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Summarise aggregates the ledger for a date range. Results are cached briefly
// and concurrent identical requests share a single query.
func (s *Service) Summarise(ctx context.Context, from, to time.Time) (Summary, error) {
	key := fmt.Sprintf("finance:summary:%d:%d", from.Unix(), to.Unix())
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached Summary
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		summary, err := s.repo.Summarise(ctx, ListFilter{From: from, To: to})
		if err != nil {
			return Summary{}, err
		}
		if s.cache != nil {
			if data, err := json.Marshal(summary); err == nil {
				_ = s.cache.Set(ctx, key, data, s.maxAge).Err()
			}
		}
		return summary, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}
