package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory lots in PostgreSQL.
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

// NewTxRepository binds lot operations to an existing transaction, letting
// the sales and purchasing repositories share one atomic unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
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

const lotColumns = `id, product_id, product_unit_id, quantity, batch_number, expiry_date, created_at, updated_at`

const getLotSQL = `SELECT ` + lotColumns + ` FROM inventory_items
WHERE product_id=$1 AND product_unit_id=$2
AND batch_number IS NOT DISTINCT FROM NULLIF($3, '')
AND expiry_date IS NOT DISTINCT FROM $4`

func (r *txRepository) GetLotForUpdate(ctx context.Context, productID, productUnitID int64, batchNumber string, expiry NullableTime) (Lot, error) {
	row := r.tx.QueryRow(ctx, getLotSQL+` FOR UPDATE`, productID, productUnitID, batchNumber, expiryArg(expiry))
	return scanLot(row)
}

func (r *txRepository) GetLotByIDForUpdate(ctx context.Context, id int64) (Lot, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, id)
	return scanLot(row)
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_items
(product_id, product_unit_id, quantity, batch_number, expiry_date, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW(), NOW())
RETURNING id`,
		lot.ProductID, lot.ProductUnitID, lot.Quantity, lot.BatchNumber, expiryArg(NullableTime{Time: lot.ExpiryDate, Valid: !lot.ExpiryDate.IsZero()}),
	).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateLotQuantity(ctx context.Context, id int64, quantity float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity=$1, updated_at=NOW() WHERE id=$2`, quantity, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

// FindLot returns the lot matching the exact identity outside a transaction.
func (r *Repository) FindLot(ctx context.Context, productID, productUnitID int64, batchNumber string, expiry NullableTime) (Lot, error) {
	row := r.pool.QueryRow(ctx, getLotSQL, productID, productUnitID, batchNumber, expiryArg(expiry))
	return scanLot(row)
}

// ListLots lists lots for the stock screens.
func (r *Repository) ListLots(ctx context.Context, filter LotFilter) ([]Lot, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		where += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	if filter.ProductUnitID != 0 {
		args = append(args, filter.ProductUnitID)
		where += ` AND product_unit_id = $` + strconv.Itoa(len(args))
	}
	if !filter.IncludeEmpty {
		where += ` AND quantity > 0`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, args...).Scan(&total); err != nil {
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
	query := `SELECT ` + lotColumns + ` FROM inventory_items` + where +
		` ORDER BY product_id, product_unit_id, expiry_date NULLS LAST, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, 0, err
		}
		lots = append(lots, lot)
	}
	return lots, total, rows.Err()
}

// TotalBaseQuantity sums lot quantities converted to base units via each
// product unit's conversion factor.
func (r *Repository) TotalBaseQuantity(ctx context.Context, productID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(i.quantity * pu.conversion_factor), 0)
FROM inventory_items i
JOIN product_units pu ON pu.id = i.product_unit_id
WHERE i.product_id = $1`, productID).Scan(&total)
	return total, err
}

// ListExpiring returns non-empty lots expiring before the cutoff.
func (r *Repository) ListExpiring(ctx context.Context, before time.Time, limit int) ([]ExpiringLot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prefixedLotColumns("i")+`, p.code, p.name
FROM inventory_items i
JOIN products p ON p.id = i.product_id
WHERE i.quantity > 0 AND i.expiry_date IS NOT NULL AND i.expiry_date <= $1
ORDER BY i.expiry_date ASC, i.id ASC
LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ExpiringLot
	for rows.Next() {
		var entry ExpiringLot
		var batch *string
		if err := rows.Scan(
			&entry.Lot.ID, &entry.Lot.ProductID, &entry.Lot.ProductUnitID, &entry.Lot.Quantity,
			&batch, &entry.Lot.ExpiryDate, &entry.Lot.CreatedAt, &entry.Lot.UpdatedAt,
			&entry.ProductCode, &entry.ProductName,
		); err != nil {
			return nil, err
		}
		if batch != nil {
			entry.Lot.BatchNumber = *batch
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// ListLowStock reports products whose base-unit total is at or below the
// product's reorder level.
func (r *Repository) ListLowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.code, p.name, COALESCE(SUM(i.quantity * pu.conversion_factor), 0) AS base_qty, p.reorder_level
FROM products p
LEFT JOIN inventory_items i ON i.product_id = p.id
LEFT JOIN product_units pu ON pu.id = i.product_unit_id
WHERE p.reorder_level > 0
GROUP BY p.id, p.code, p.name, p.reorder_level
HAVING COALESCE(SUM(i.quantity * pu.conversion_factor), 0) <= p.reorder_level
ORDER BY base_qty ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LowStockEntry
	for rows.Next() {
		var entry LowStockEntry
		if err := rows.Scan(&entry.ProductID, &entry.ProductCode, &entry.ProductName, &entry.BaseQuantity, &entry.ReorderLevel); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func prefixedLotColumns(alias string) string {
	return alias + `.id, ` + alias + `.product_id, ` + alias + `.product_unit_id, ` + alias + `.quantity, ` + alias + `.batch_number, ` + alias + `.expiry_date, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func scanLot(row pgx.Row) (Lot, error) {
	var lot Lot
	var batch *string
	var expiry *time.Time
	err := row.Scan(&lot.ID, &lot.ProductID, &lot.ProductUnitID, &lot.Quantity, &batch, &expiry, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrLotNotFound
		}
		return Lot{}, err
	}
	if batch != nil {
		lot.BatchNumber = *batch
	}
	if expiry != nil {
		lot.ExpiryDate = *expiry
	}
	return lot, nil
}

func expiryArg(expiry NullableTime) any {
	if !expiry.Valid {
		return nil
	}
	return expiry.Time
}
