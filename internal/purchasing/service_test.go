package purchasing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharmapos/pharmapos/internal/finance"
	"github.com/pharmapos/pharmapos/internal/inventory"
)

// memoryStore fakes the transactional surface. WithTx snapshots state and
// restores it on error, mimicking a rollback.
type memoryStore struct {
	orders       map[int64]*PurchaseOrder
	items        map[int64]PurchaseOrderItem
	codes        map[string]int64
	lots         map[int64]*inventory.Lot
	transactions []finance.Transaction
	nextID       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders: make(map[int64]*PurchaseOrder),
		items:  make(map[int64]PurchaseOrderItem),
		codes:  make(map[string]int64),
		lots:   make(map[int64]*inventory.Lot),
	}
}

func (s *memoryStore) snapshot() *memoryStore {
	clone := newMemoryStore()
	clone.nextID = s.nextID
	for id, o := range s.orders {
		cp := *o
		clone.orders[id] = &cp
	}
	for id, it := range s.items {
		clone.items[id] = it
	}
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
	s.orders = snap.orders
	s.items = snap.items
	s.codes = snap.codes
	s.lots = snap.lots
	s.transactions = snap.transactions
	s.nextID = snap.nextID
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := s.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return *order, nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

// SumPaymentsForOrder satisfies PaymentsPort for the read-only aggregates.
func (s *memoryStore) SumPaymentsForOrder(ctx context.Context, orderID int64) (float64, error) {
	var total float64
	for _, t := range s.transactions {
		if t.PurchaseOrderID == orderID && t.Type == finance.TypeExpense {
			total += t.Amount
		}
	}
	return total, nil
}

type memoryTx struct {
	store *memoryStore
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	if _, used := tx.store.codes[order.Code]; used {
		return 0, ErrDuplicateCode
	}
	tx.store.nextID++
	order.ID = tx.store.nextID
	tx.store.orders[order.ID] = &order
	tx.store.codes[order.Code] = order.ID
	return order.ID, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item PurchaseOrderItem) (int64, error) {
	tx.store.nextID++
	item.ID = tx.store.nextID
	tx.store.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	item, ok := tx.store.items[itemID]
	if !ok || item.PurchaseOrderID != orderID {
		return ErrItemNotFound
	}
	delete(tx.store.items, itemID)
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := tx.store.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return *order, nil
}

func (tx *memoryTx) SumItemAmounts(ctx context.Context, orderID int64) (float64, error) {
	var total float64
	for _, item := range tx.store.items {
		if item.PurchaseOrderID == orderID {
			total += item.Quantity * item.CostPrice
		}
	}
	return total, nil
}

func (tx *memoryTx) UpdateTotal(ctx context.Context, id int64, total float64) error {
	order, ok := tx.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.TotalAmount = total
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error {
	order, ok := tx.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.PaymentStatus = status
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

func (tx *memoryFinanceTx) SumPaymentsForOrder(ctx context.Context, orderID int64) (float64, error) {
	return tx.store.SumPaymentsForOrder(ctx, orderID)
}

func newTestService(store *memoryStore) *Service {
	return NewService(store, inventory.NewLedger(), store, nil)
}

func createOrder(t *testing.T, svc *Service, code string, items []ItemInput) PurchaseOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Code:          code,
		SupplierID:    1,
		UserID:        3,
		PaymentMethod: "TRANSFER",
		Items:         items,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderReceivesStockAndComputesTotal(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	order := createOrder(t, svc, "PO-001", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 10, CostPrice: 5000, BatchNumber: "B1"},
		{ProductID: 2, ProductUnitID: 2, Quantity: 4, CostPrice: 12500},
	})

	require.InDelta(t, 100000.0, order.TotalAmount, 0.0001)
	require.Equal(t, StatusUnpaid, order.PaymentStatus)
	require.Len(t, order.Items, 2)

	require.Len(t, store.lots, 2)
	var totalReceived float64
	for _, lot := range store.lots {
		totalReceived += lot.Quantity
	}
	require.InDelta(t, 14.0, totalReceived, 0.0001)
}

func TestPaymentLifecycle(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	order := createOrder(t, svc, "PO-002", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 10, CostPrice: 10000},
	})
	require.InDelta(t, 100000.0, order.TotalAmount, 0.0001)

	status, err := svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 60000, PaymentMethod: "CASH", UserID: 3})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, status)

	remaining, err := svc.Remaining(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 40000.0, remaining, 0.0001)

	status, err = svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 40000, PaymentMethod: "CASH", UserID: 3})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, status)

	remaining, err = svc.Remaining(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.0, remaining, 0.0001)

	_, err = svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 1, PaymentMethod: "CASH", UserID: 3})
	require.ErrorIs(t, err, ErrOrderLocked)

	paid, err := svc.TotalPaid(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 100000.0, paid, 0.0001)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	order := createOrder(t, svc, "PO-003", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: 50000},
	})

	_, err := svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 60000, PaymentMethod: "CASH", UserID: 3})
	require.ErrorIs(t, err, ErrOverpayment)
	require.Empty(t, store.transactions)

	status, err := svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 30000, PaymentMethod: "CASH", UserID: 3})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, status)

	_, err = svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 30000, PaymentMethod: "CASH", UserID: 3})
	require.ErrorIs(t, err, ErrOverpayment)
	require.Len(t, store.transactions, 1)
}

func TestAddItemRecomputesTotalAndReceivesStock(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	order := createOrder(t, svc, "PO-004", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 2, CostPrice: 10000},
	})
	require.InDelta(t, 20000.0, order.TotalAmount, 0.0001)

	_, err := svc.AddItem(ctx, order.ID, ItemInput{ProductID: 2, ProductUnitID: 2, Quantity: 3, CostPrice: 5000}, 3)
	require.NoError(t, err)

	updated, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 35000.0, updated.TotalAmount, 0.0001)
	require.Len(t, store.lots, 2)
}

func TestRemoveItemRecomputesTotalWithoutReversingStock(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	order := createOrder(t, svc, "PO-005", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 2, CostPrice: 10000},
		{ProductID: 2, ProductUnitID: 2, Quantity: 3, CostPrice: 5000},
	})
	require.InDelta(t, 35000.0, order.TotalAmount, 0.0001)

	require.NoError(t, svc.RemoveItem(ctx, order.ID, order.Items[1].ID, 3))

	updated, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 20000.0, updated.TotalAmount, 0.0001)

	// Received stock stays put after the line is removed.
	var totalStock float64
	for _, lot := range store.lots {
		totalStock += lot.Quantity
	}
	require.InDelta(t, 5.0, totalStock, 0.0001)
}

func TestItemMutationsLockedOnPaidOrder(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	order := createOrder(t, svc, "PO-006", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: 10000},
	})
	_, err := svc.RecordPayment(ctx, order.ID, PaymentInput{Amount: 10000, PaymentMethod: "CASH", UserID: 3})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, order.ID, ItemInput{ProductID: 2, ProductUnitID: 2, Quantity: 1, CostPrice: 100}, 3)
	require.ErrorIs(t, err, ErrOrderLocked)

	err = svc.RemoveItem(ctx, order.ID, order.Items[0].ID, 3)
	require.ErrorIs(t, err, ErrOrderLocked)
}

func TestRemoveMissingItem(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	order := createOrder(t, svc, "PO-007", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: 10000},
	})
	err := svc.RemoveItem(context.Background(), order.ID, 9999, 3)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestCreateOrderRejectsDuplicateCode(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	createOrder(t, svc, "PO-008", []ItemInput{
		{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: 100},
	})
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Code:          "PO-008",
		SupplierID:    1,
		UserID:        3,
		PaymentMethod: "CASH",
		Items:         []ItemInput{{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: 100}},
	})
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.Len(t, store.orders, 1)
}

func TestCreateOrderValidatesItems(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		Code: "PO-009", SupplierID: 1, UserID: 3, PaymentMethod: "CASH",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		Code: "PO-010", SupplierID: 1, UserID: 3, PaymentMethod: "CASH",
		Items: []ItemInput{{ProductID: 1, ProductUnitID: 1, Quantity: 0, CostPrice: 100}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		Code: "PO-011", SupplierID: 1, UserID: 3, PaymentMethod: "CASH",
		Items: []ItemInput{{ProductID: 1, ProductUnitID: 1, Quantity: 1, CostPrice: -5}},
	})
	require.ErrorIs(t, err, ErrValidation)
}
