package purchasing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmapos/pharmapos/internal/finance"
	"github.com/pharmapos/pharmapos/internal/inventory"
)

// TxRepository exposes the writes the purchasing engine performs inside one
// transaction. Inventory and Finance are bound to the same pgx.Tx so stock
// receipts and EXPENSE ledger entries share the order's commit.
type TxRepository interface {
	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item PurchaseOrderItem) (int64, error)
	DeleteItem(ctx context.Context, orderID, itemID int64) error
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	SumItemAmounts(ctx context.Context, orderID int64) (float64, error)
	UpdateTotal(ctx context.Context, id int64, total float64) error
	UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error
	Inventory() inventory.TxRepository
	Finance() finance.TxRepository
}

// RepositoryPort describes the persistence surface used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
}

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func (r *txRepository) Finance() finance.TxRepository {
	return finance.NewTxRepository(r.tx)
}

const insertOrderSQL = `INSERT INTO purchase_orders
(code, supplier_id, user_id, order_date, total_amount, payment_status, payment_method, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id`

func (r *txRepository) InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, insertOrderSQL,
		order.Code, order.SupplierID, order.UserID, order.OrderDate,
		order.TotalAmount, string(order.PaymentStatus), order.PaymentMethod, order.Notes,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

const insertItemSQL = `INSERT INTO purchase_order_items
(purchase_order_id, product_id, product_unit_id, quantity, cost_price, batch_number, expiry_date)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
RETURNING id`

func (r *txRepository) InsertItem(ctx context.Context, item PurchaseOrderItem) (int64, error) {
	var expiry any
	if !item.ExpiryDate.IsZero() {
		expiry = item.ExpiryDate
	}
	var id int64
	err := r.tx.QueryRow(ctx, insertItemSQL,
		item.PurchaseOrderID, item.ProductID, item.ProductUnitID,
		item.Quantity, item.CostPrice, item.BatchNumber, expiry,
	).Scan(&id)
	return id, err
}

func (r *txRepository) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	tag, err := r.tx.Exec(ctx,
		`DELETE FROM purchase_order_items WHERE id = $1 AND purchase_order_id = $2`, itemID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

const orderColumns = `id, code, supplier_id, user_id, order_date, total_amount,
payment_status, payment_method, notes, created_at`

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (r *txRepository) SumItemAmounts(ctx context.Context, orderID int64) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity * cost_price), 0) FROM purchase_order_items WHERE purchase_order_id = $1`,
		orderID).Scan(&total)
	return total, err
}

func (r *txRepository) UpdateTotal(ctx context.Context, id int64, total float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET total_amount = $1 WHERE id = $2`, total, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET payment_status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one purchase order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return PurchaseOrder{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, purchase_order_id, product_id, product_unit_id, quantity, cost_price, batch_number, expiry_date
		 FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item PurchaseOrderItem
		var batch *string
		var expiry *time.Time
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.ProductUnitID,
			&item.Quantity, &item.CostPrice, &batch, &expiry); err != nil {
			return PurchaseOrder{}, err
		}
		if batch != nil {
			item.BatchNumber = *batch
		}
		if expiry != nil {
			item.ExpiryDate = *expiry
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// List returns purchase orders matching the filter, newest first, without items.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += ` AND payment_status = $` + strconv.Itoa(len(args))
	}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		where += ` AND supplier_id = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += ` AND code ILIKE $` + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += ` AND order_date >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += ` AND order_date <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := `SELECT ` + orderColumns + ` FROM purchase_orders` + where +
		` ORDER BY order_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var order PurchaseOrder
	var status string
	err := row.Scan(&order.ID, &order.Code, &order.SupplierID, &order.UserID, &order.OrderDate,
		&order.TotalAmount, &status, &order.PaymentMethod, &order.Notes, &order.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.PaymentStatus = PaymentStatus(status)
	return order, nil
}
