package finance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	transactions   []Transaction
	nextID         int64
	summariseCalls int
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := append([]Transaction(nil), m.transactions...)
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.transactions = snapshot
		return err
	}
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	out := make([]Transaction, 0, len(m.transactions))
	for _, tr := range m.transactions {
		if filter.Type != "" && tr.Type != filter.Type {
			continue
		}
		if filter.Related != "" && tr.RelatedType != filter.Related {
			continue
		}
		out = append(out, tr)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Summarise(ctx context.Context, filter ListFilter) (Summary, error) {
	m.summariseCalls++
	summary := Summary{From: filter.From, To: filter.To}
	for _, tr := range m.transactions {
		if !filter.From.IsZero() && tr.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && tr.Date.After(filter.To) {
			continue
		}
		switch tr.Type {
		case TypeIncome:
			summary.Income += tr.Amount
		case TypeExpense:
			summary.Expense += tr.Amount
		}
	}
	summary.Net = summary.Income - summary.Expense
	return summary, nil
}

func (m *memoryRepo) SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error) {
	var sum float64
	for _, tr := range m.transactions {
		if tr.RelatedType == RelatedPurchase && tr.PurchaseOrderID == purchaseOrderID {
			sum += tr.Amount
		}
	}
	return sum, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertTransaction(ctx context.Context, entry Transaction) (int64, error) {
	t.repo.nextID++
	entry.ID = t.repo.nextID
	entry.CreatedAt = time.Now()
	t.repo.transactions = append(t.repo.transactions, entry)
	return entry.ID, nil
}

func (t *memoryTx) SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error) {
	return t.repo.SumPaymentsForOrder(ctx, purchaseOrderID)
}

func newCachedService(t *testing.T, repo *memoryRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(repo, client, nil)
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordManualAppendsEntry(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)

	entry, err := svc.RecordManual(context.Background(), ManualEntryInput{
		Date:        day(3),
		Type:        TypeExpense,
		Amount:      250,
		Description: "Shelf repair",
		UserID:      1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.ID)
	require.Equal(t, RelatedOther, entry.RelatedType)
	require.Len(t, repo.transactions, 1)
}

func TestRecordManualValidatesInput(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordManual(ctx, ManualEntryInput{Type: TypeExpense, Amount: 0, Description: "x"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordManual(ctx, ManualEntryInput{Type: "TRANSFER", Amount: 10, Description: "x"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordManual(ctx, ManualEntryInput{Type: TypeIncome, Amount: 10, Description: "   "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSummariseComputesNet(t *testing.T) {
	repo := &memoryRepo{transactions: []Transaction{
		{Date: day(1), Type: TypeIncome, Amount: 5000},
		{Date: day(2), Type: TypeExpense, Amount: 1200},
		{Date: day(20), Type: TypeIncome, Amount: 9999},
	}}
	svc := NewService(repo, nil, nil)

	summary, err := svc.Summarise(context.Background(), day(1), day(10))
	require.NoError(t, err)
	require.Equal(t, float64(5000), summary.Income)
	require.Equal(t, float64(1200), summary.Expense)
	require.Equal(t, float64(3800), summary.Net)
}

func TestSummariseServesSecondCallFromCache(t *testing.T) {
	repo := &memoryRepo{transactions: []Transaction{
		{Date: day(1), Type: TypeIncome, Amount: 100},
	}}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.Summarise(ctx, day(1), day(5))
	require.NoError(t, err)

	// A write after caching must not show up until the entry expires.
	repo.transactions = append(repo.transactions, Transaction{Date: day(2), Type: TypeIncome, Amount: 900})

	second, err := svc.Summarise(ctx, day(1), day(5))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.summariseCalls)
}

func TestSummariseDistinctRangesDoNotShareCache(t *testing.T) {
	repo := &memoryRepo{transactions: []Transaction{
		{Date: day(1), Type: TypeIncome, Amount: 100},
		{Date: day(8), Type: TypeIncome, Amount: 40},
	}}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	narrow, err := svc.Summarise(ctx, day(1), day(5))
	require.NoError(t, err)
	wide, err := svc.Summarise(ctx, day(1), day(10))
	require.NoError(t, err)
	require.Equal(t, float64(100), narrow.Income)
	require.Equal(t, float64(140), wide.Income)
	require.Equal(t, 2, repo.summariseCalls)
}

func TestListFiltersByType(t *testing.T) {
	repo := &memoryRepo{transactions: []Transaction{
		{Type: TypeIncome, Amount: 10},
		{Type: TypeExpense, Amount: 20},
		{Type: TypeExpense, Amount: 30},
	}}
	svc := NewService(repo, nil, nil)

	entries, page, err := svc.List(context.Background(), ListFilter{Type: TypeExpense, Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, page.Total)
}
