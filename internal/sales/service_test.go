package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pharmapos/pharmapos/internal/finance"
	"github.com/pharmapos/pharmapos/internal/inventory"
)

// memoryStore fakes the whole transactional surface. WithTx snapshots state
// before the callback and restores it on error, mimicking a rollback.
type memoryStore struct {
	invoices     map[int64]*Invoice
	items        []InvoiceItem
	codes        map[string]int64
	lots         map[int64]*inventory.Lot
	transactions []finance.Transaction
	nextID       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		invoices: make(map[int64]*Invoice),
		codes:    make(map[string]int64),
		lots:     make(map[int64]*inventory.Lot),
	}
}

func (s *memoryStore) snapshot() *memoryStore {
	clone := newMemoryStore()
	clone.nextID = s.nextID
	for id, inv := range s.invoices {
		cp := *inv
		clone.invoices[id] = &cp
	}
	clone.items = append([]InvoiceItem(nil), s.items...)
	for code, id := range s.codes {
		clone.codes[code] = id
	}
	for id, lot := range s.lots {
		cp := *lot
		clone.lots[id] = &cp
	}
	clone.transactions = append([]finance.Transaction(nil), s.transactions...)
	return clone
}

func (s *memoryStore) restore(snap *memoryStore) {
	s.invoices = snap.invoices
	s.items = snap.items
	s.codes = snap.codes
	s.lots = snap.lots
	s.transactions = snap.transactions
	s.nextID = snap.nextID
}

func (s *memoryStore) addLot(productID, unitID int64, qty float64, batch string) int64 {
	s.nextID++
	s.lots[s.nextID] = &inventory.Lot{
		ID: s.nextID, ProductID: productID, ProductUnitID: unitID,
		Quantity: qty, BatchNumber: batch,
	}
	return s.nextID
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return *inv, nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range s.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

type memoryTx struct {
	store *memoryStore
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, invoice Invoice) (int64, error) {
	if _, used := tx.store.codes[invoice.Code]; used {
		return 0, ErrDuplicateCode
	}
	tx.store.nextID++
	invoice.ID = tx.store.nextID
	tx.store.invoices[invoice.ID] = &invoice
	tx.store.codes[invoice.Code] = invoice.ID
	return invoice.ID, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item InvoiceItem) (int64, error) {
	tx.store.nextID++
	item.ID = tx.store.nextID
	tx.store.items = append(tx.store.items, item)
	return item.ID, nil
}

func (tx *memoryTx) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := tx.store.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return *inv, nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	inv, ok := tx.store.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	return nil
}

func (tx *memoryTx) Inventory() inventory.TxRepository {
	return &memoryInventoryTx{store: tx.store}
}

func (tx *memoryTx) Finance() finance.TxRepository {
	return &memoryFinanceTx{store: tx.store}
}

type memoryInventoryTx struct {
	store *memoryStore
}

func (tx *memoryInventoryTx) GetLotForUpdate(ctx context.Context, productID, productUnitID int64, batch string, expiry inventory.NullableTime) (inventory.Lot, error) {
	for _, lot := range tx.store.lots {
		if lot.ProductID == productID && lot.ProductUnitID == productUnitID && lot.BatchNumber == batch &&
			expiry.Valid == !lot.ExpiryDate.IsZero() && (!expiry.Valid || lot.ExpiryDate.Equal(expiry.Time)) {
			return *lot, nil
		}
	}
	return inventory.Lot{}, inventory.ErrLotNotFound
}

func (tx *memoryInventoryTx) GetLotByIDForUpdate(ctx context.Context, id int64) (inventory.Lot, error) {
	if lot, ok := tx.store.lots[id]; ok {
		return *lot, nil
	}
	return inventory.Lot{}, inventory.ErrLotNotFound
}

func (tx *memoryInventoryTx) InsertLot(ctx context.Context, lot inventory.Lot) (int64, error) {
	tx.store.nextID++
	lot.ID = tx.store.nextID
	tx.store.lots[lot.ID] = &lot
	return lot.ID, nil
}

func (tx *memoryInventoryTx) UpdateLotQuantity(ctx context.Context, id int64, quantity float64) error {
	lot, ok := tx.store.lots[id]
	if !ok {
		return inventory.ErrLotNotFound
	}
	lot.Quantity = quantity
	return nil
}

type memoryFinanceTx struct {
	store *memoryStore
}

func (tx *memoryFinanceTx) InsertTransaction(ctx context.Context, entry finance.Transaction) (int64, error) {
	tx.store.nextID++
	entry.ID = tx.store.nextID
	tx.store.transactions = append(tx.store.transactions, entry)
	return entry.ID, nil
}

func (tx *memoryFinanceTx) SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error) {
	var total float64
	for _, t := range tx.store.transactions {
		if t.PurchaseOrderID == purchaseOrderID && t.Type == finance.TypeExpense {
			total += t.Amount
		}
	}
	return total, nil
}

func TestCreateInvoiceCommitsSaleAtomically(t *testing.T) {
	store := newMemoryStore()
	lotA := store.addLot(1, 1, 10, "")
	lotB := store.addLot(2, 2, 5, "")
	svc := NewService(store, inventory.NewLedger(), nil)

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Code:          "INV-001",
		UserID:        7,
		PaymentMethod: "CASH",
		Discount:      500,
		Lines: []Line{
			{ProductID: 1, ProductUnitID: 1, Quantity: 3, UnitPrice: 1000},
			{ProductID: 2, ProductUnitID: 2, Quantity: 1, UnitPrice: 5000},
		},
	})
	require.NoError(t, err)

	require.InDelta(t, 8000.0, invoice.TotalAmount, 0.0001)
	require.InDelta(t, 7500.0, invoice.FinalAmount, 0.0001)
	require.Equal(t, StatusCompleted, invoice.Status)
	require.Len(t, invoice.Items, 2)

	require.InDelta(t, 7.0, store.lots[lotA].Quantity, 0.0001)
	require.InDelta(t, 4.0, store.lots[lotB].Quantity, 0.0001)

	require.Len(t, store.transactions, 1)
	entry := store.transactions[0]
	require.Equal(t, finance.TypeIncome, entry.Type)
	require.InDelta(t, 7500.0, entry.Amount, 0.0001)
	require.Equal(t, finance.RelatedInvoice, entry.RelatedType)
	require.Equal(t, invoice.ID, entry.InvoiceID)
}

func TestCreateInvoiceRollsBackOnInsufficientStock(t *testing.T) {
	store := newMemoryStore()
	lotA := store.addLot(1, 1, 10, "")
	store.addLot(2, 2, 2, "")
	svc := NewService(store, inventory.NewLedger(), nil)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Code:          "INV-002",
		UserID:        7,
		PaymentMethod: "CASH",
		Lines: []Line{
			{ProductID: 1, ProductUnitID: 1, Quantity: 3, UnitPrice: 1000},
			{ProductID: 2, ProductUnitID: 2, Quantity: 5, UnitPrice: 5000},
		},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	require.Empty(t, store.invoices)
	require.Empty(t, store.items)
	require.Empty(t, store.transactions)
	require.InDelta(t, 10.0, store.lots[lotA].Quantity, 0.0001)
}

func TestCreateInvoiceRejectsDuplicateCode(t *testing.T) {
	store := newMemoryStore()
	store.addLot(1, 1, 100, "")
	svc := NewService(store, inventory.NewLedger(), nil)

	input := CreateInvoiceInput{
		Code:          "INV-003",
		UserID:        7,
		PaymentMethod: "CASH",
		Lines:         []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 1, UnitPrice: 100}},
	}
	_, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.Len(t, store.invoices, 1)
	require.Len(t, store.transactions, 1)
}

func TestCreateInvoiceFloorsFinalAmountAtZero(t *testing.T) {
	store := newMemoryStore()
	store.addLot(1, 1, 10, "")
	svc := NewService(store, inventory.NewLedger(), nil)

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Code:          "INV-004",
		UserID:        7,
		PaymentMethod: "CASH",
		Discount:      5000,
		Lines:         []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.InDelta(t, 100.0, invoice.TotalAmount, 0.0001)
	require.InDelta(t, 0.0, invoice.FinalAmount, 0.0001)
	require.InDelta(t, 0.0, store.transactions[0].Amount, 0.0001)
}

func TestCreateInvoiceValidatesInput(t *testing.T) {
	svc := NewService(newMemoryStore(), inventory.NewLedger(), nil)
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{UserID: 1, PaymentMethod: "CASH",
		Lines: []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 1, UnitPrice: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{Code: "X", UserID: 1, PaymentMethod: "CASH"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{Code: "X", UserID: 1, PaymentMethod: "CASH",
		Lines: []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 0, UnitPrice: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{Code: "X", UserID: 1, PaymentMethod: "CASH", Discount: -1,
		Lines: []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 1, UnitPrice: 1}}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCancelInvoiceDoesNotRestock(t *testing.T) {
	store := newMemoryStore()
	lot := store.addLot(1, 1, 10, "")
	svc := NewService(store, inventory.NewLedger(), nil)
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		Code:          "INV-005",
		UserID:        7,
		PaymentMethod: "CASH",
		Lines:         []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 4, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.InDelta(t, 6.0, store.lots[lot].Quantity, 0.0001)

	require.NoError(t, svc.CancelInvoice(ctx, invoice.ID, 7))
	cancelled, err := svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.InDelta(t, 6.0, store.lots[lot].Quantity, 0.0001)

	err = svc.CancelInvoice(ctx, invoice.ID, 7)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestCreateInvoiceConsumesSpecificLot(t *testing.T) {
	store := newMemoryStore()
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	near := store.addLot(1, 1, 5, "B1")
	store.lots[near].ExpiryDate = expiry
	other := store.addLot(1, 1, 5, "B2")
	svc := NewService(store, inventory.NewLedger(), nil)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Code:          "INV-006",
		UserID:        7,
		PaymentMethod: "CASH",
		Lines:         []Line{{ProductID: 1, ProductUnitID: 1, Quantity: 2, UnitPrice: 100, LotID: near}},
	})
	require.NoError(t, err)
	require.InDelta(t, 3.0, store.lots[near].Quantity, 0.0001)
	require.InDelta(t, 5.0, store.lots[other].Quantity, 0.0001)
}
