package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	lots   map[int64]*Lot
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lots: make(map[int64]*Lot)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) FindLot(ctx context.Context, productID, productUnitID int64, batch string, expiry NullableTime) (Lot, error) {
	return (&memoryTx{repo: r}).GetLotForUpdate(ctx, productID, productUnitID, batch, expiry)
}

func (r *memoryRepo) ListLots(ctx context.Context, filter LotFilter) ([]Lot, int, error) {
	var lots []Lot
	for _, lot := range r.lots {
		lots = append(lots, *lot)
	}
	return lots, len(lots), nil
}

func (r *memoryRepo) TotalBaseQuantity(ctx context.Context, productID int64) (float64, error) {
	return 0, nil
}

func (r *memoryRepo) ListExpiring(ctx context.Context, before time.Time, limit int) ([]ExpiringLot, error) {
	return nil, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	return nil, nil
}

func (tx *memoryTx) GetLotForUpdate(ctx context.Context, productID, productUnitID int64, batch string, expiry NullableTime) (Lot, error) {
	for _, lot := range tx.repo.lots {
		if lot.ProductID != productID || lot.ProductUnitID != productUnitID {
			continue
		}
		if lot.BatchNumber != batch {
			continue
		}
		if expiry.Valid != !lot.ExpiryDate.IsZero() {
			continue
		}
		if expiry.Valid && !lot.ExpiryDate.Equal(expiry.Time) {
			continue
		}
		return *lot, nil
	}
	return Lot{}, ErrLotNotFound
}

func (tx *memoryTx) GetLotByIDForUpdate(ctx context.Context, id int64) (Lot, error) {
	if lot, ok := tx.repo.lots[id]; ok {
		return *lot, nil
	}
	return Lot{}, ErrLotNotFound
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	tx.repo.nextID++
	lot.ID = tx.repo.nextID
	tx.repo.lots[lot.ID] = &lot
	return lot.ID, nil
}

func (tx *memoryTx) UpdateLotQuantity(ctx context.Context, id int64, quantity float64) error {
	lot, ok := tx.repo.lots[id]
	if !ok {
		return ErrLotNotFound
	}
	lot.Quantity = quantity
	return nil
}

func TestReceiveMergesIdenticalLots(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewLedger(), nil)
	ctx := context.Background()

	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 5, BatchNumber: "B1", ExpiryDate: expiry}, 1)
	require.NoError(t, err)
	second, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 3, BatchNumber: "B1", ExpiryDate: expiry}, 1)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.InDelta(t, 8.0, second.Quantity, 0.0001)
	require.Len(t, repo.lots, 1)
}

func TestReceiveKeepsDistinctBatchesApart(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewLedger(), nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 5, BatchNumber: "B1"}, 1)
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 5, BatchNumber: "B2"}, 1)
	require.NoError(t, err)

	require.Len(t, repo.lots, 2)
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewLedger(), nil)

	_, err := svc.Receive(context.Background(), ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 0}, 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Empty(t, repo.lots)
}

func TestConsumeInsufficientStockLeavesLotUntouched(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	svc := NewService(repo, ledger, nil)
	ctx := context.Background()

	lot, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 7}, 1)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := ledger.Consume(ctx, tx, ConsumeInput{LotID: lot.ID, Quantity: 10})
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.InDelta(t, 7.0, repo.lots[lot.ID].Quantity, 0.0001)
}

func TestConsumeDecrementsButKeepsRowAtZero(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	svc := NewService(repo, ledger, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 4, BatchNumber: "B9"}, 1)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		remaining, err := ledger.Consume(ctx, tx, ConsumeInput{ProductID: 1, ProductUnitID: 1, Quantity: 4, BatchNumber: "B9"})
		if err != nil {
			return err
		}
		require.InDelta(t, 0.0, remaining.Quantity, 0.0001)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, repo.lots, 1)
}

func TestConsumeUnknownLot(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := ledger.Consume(ctx, tx, ConsumeInput{ProductID: 9, ProductUnitID: 9, Quantity: 1})
		return err
	})
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestConsumeByIDChecksProductOwnership(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	svc := NewService(repo, ledger, nil)
	ctx := context.Background()

	lot, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 10}, 1)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := ledger.Consume(ctx, tx, ConsumeInput{LotID: lot.ID, ProductID: 2, Quantity: 1})
		return err
	})
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestConsumeDistinguishesLotByExpiry(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	svc := NewService(repo, ledger, nil)
	ctx := context.Background()

	near := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	far := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 2, BatchNumber: "B1", ExpiryDate: near}, 1)
	require.NoError(t, err)
	farLot, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 9, BatchNumber: "B1", ExpiryDate: far}, 1)
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := ledger.Consume(ctx, tx, ConsumeInput{ProductID: 1, ProductUnitID: 1, Quantity: 5, BatchNumber: "B1", ExpiryDate: far})
		if err != nil {
			return err
		}
		require.Equal(t, farLot.ID, lot.ID)
		return nil
	})
	require.NoError(t, err)
	require.InDelta(t, 4.0, repo.lots[farLot.ID].Quantity, 0.0001)
}

func TestFindLotMatchesAbsentBatchAndExpiry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewLedger(), nil)
	ctx := context.Background()

	created, err := svc.Receive(ctx, ReceiveInput{ProductID: 3, ProductUnitID: 2, Quantity: 1}, 1)
	require.NoError(t, err)

	found, err := svc.FindLot(ctx, 3, 2, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.FindLot(ctx, 3, 2, "B1", time.Time{})
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestStockNeverNegativeUnderSequences(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger()
	svc := NewService(repo, ledger, nil)
	ctx := context.Background()

	lot, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, ProductUnitID: 1, Quantity: 10}, 1)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := ledger.Consume(ctx, tx, ConsumeInput{LotID: lot.ID, Quantity: 3})
			return err
		})
		if i < 3 {
			require.NoError(t, err, fmt.Sprintf("consume #%d", i))
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
		require.GreaterOrEqual(t, repo.lots[lot.ID].Quantity, 0.0)
	}
	require.InDelta(t, 1.0, repo.lots[lot.ID].Quantity, 0.0001)
}
