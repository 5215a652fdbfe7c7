package sales

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

// TxRepository exposes the writes CreateInvoice performs inside one
// transaction. Inventory and Finance return sub-repositories bound to the
// same pgx.Tx, so stock decrements and the INCOME ledger entry commit or
// roll back together with the invoice rows.
type TxRepository interface {
	InsertInvoice(ctx context.Context, invoice Invoice) (int64, error)
	InsertItem(ctx context.Context, item InvoiceItem) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error
	Inventory() inventory.TxRepository
	Finance() finance.TxRepository
}

// RepositoryPort describes the persistence surface used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
}

// Repository persists invoices in PostgreSQL.
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

const insertInvoiceSQL = `INSERT INTO invoices
(code, customer_name, customer_phone, user_id, invoice_date, total_amount, discount, final_amount, payment_method, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
RETURNING id`

func (r *txRepository) InsertInvoice(ctx context.Context, invoice Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, insertInvoiceSQL,
		invoice.Code, invoice.CustomerName, invoice.CustomerPhone, invoice.UserID,
		invoice.InvoiceDate, invoice.TotalAmount, invoice.Discount, invoice.FinalAmount,
		invoice.PaymentMethod, string(invoice.Status),
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

const insertItemSQL = `INSERT INTO invoice_items
(invoice_id, product_id, product_unit_id, quantity, unit_price, amount)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

func (r *txRepository) InsertItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, insertItemSQL,
		item.InvoiceID, item.ProductID, item.ProductUnitID, item.Quantity, item.UnitPrice, item.Amount,
	).Scan(&id)
	return id, err
}

const invoiceColumns = `id, code, customer_name, customer_phone, user_id, invoice_date,
total_amount, discount, final_amount, payment_method, status, created_at`

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one invoice with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, product_id, product_unit_id, quantity, unit_price, amount
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.ProductUnitID, &item.Quantity, &item.UnitPrice, &item.Amount); err != nil {
			return Invoice{}, err
		}
		invoice.Items = append(invoice.Items, item)
	}
	return invoice, rows.Err()
}

// List returns invoices matching the filter, newest first, without items.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (code ILIKE $` + n + ` OR customer_name ILIKE $` + n + `)`
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += ` AND invoice_date >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += ` AND invoice_date <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
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
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where +
		` ORDER BY invoice_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, total, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	var date, created time.Time
	err := row.Scan(&inv.ID, &inv.Code, &inv.CustomerName, &inv.CustomerPhone, &inv.UserID,
		&date, &inv.TotalAmount, &inv.Discount, &inv.FinalAmount, &inv.PaymentMethod, &status, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.InvoiceDate = date
	inv.CreatedAt = created
	inv.Status = InvoiceStatus(status)
	return inv, nil
}
