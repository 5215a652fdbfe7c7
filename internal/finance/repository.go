package finance

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepository exposes the ledger operations usable inside an enclosing
// transaction. The sales and purchasing engines receive one bound to their own
// pgx.Tx so ledger entries commit or roll back with the rest of the workflow.
type TxRepository interface {
	InsertTransaction(ctx context.Context, entry Transaction) (int64, error)
	SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error)
}

// RepositoryPort describes the persistence surface used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	Summarise(ctx context.Context, filter ListFilter) (Summary, error)
	SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error)
}

// Repository persists ledger entries in PostgreSQL.
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

// NewTxRepository binds ledger operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
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

const insertTransactionSQL = `INSERT INTO transactions
(tx_date, tx_type, amount, description, user_id, related_type, invoice_id, purchase_order_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NULLIF($8, 0), NOW())
RETURNING id`

func (r *txRepository) InsertTransaction(ctx context.Context, entry Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, insertTransactionSQL,
		entry.Date, string(entry.Type), entry.Amount, entry.Description, entry.UserID,
		string(entry.RelatedType), entry.InvoiceID, entry.PurchaseOrderID,
	).Scan(&id)
	return id, err
}

const sumPaymentsSQL = `SELECT COALESCE(SUM(amount), 0) FROM transactions
WHERE purchase_order_id = $1 AND tx_type = 'EXPENSE'`

func (r *txRepository) SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, sumPaymentsSQL, purchaseOrderID).Scan(&total)
	return total, err
}

// SumPaymentsForOrder aggregates EXPENSE entries outside a transaction, for
// the read-only TotalPaid/Remaining operations.
func (r *Repository) SumPaymentsForOrder(ctx context.Context, purchaseOrderID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, sumPaymentsSQL, purchaseOrderID).Scan(&total)
	return total, err
}

// List returns ledger entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += ` AND tx_type = $` + strconv.Itoa(len(args))
	}
	if filter.Related != "" {
		args = append(args, string(filter.Related))
		where += ` AND related_type = $` + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += ` AND tx_date >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += ` AND tx_date <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
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
	query := `SELECT id, tx_date, tx_type, amount, description, user_id, related_type,
COALESCE(invoice_id, 0), COALESCE(purchase_order_id, 0), created_at
FROM transactions` + where + ` ORDER BY tx_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Transaction
	for rows.Next() {
		var t Transaction
		var txType, related string
		if err := rows.Scan(&t.ID, &t.Date, &txType, &t.Amount, &t.Description, &t.UserID, &related, &t.InvoiceID, &t.PurchaseOrderID, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		t.Type = TransactionType(txType)
		t.RelatedType = RelatedType(related)
		entries = append(entries, t)
	}
	return entries, total, rows.Err()
}

// Summarise aggregates income and expense over the filter's date range.
func (r *Repository) Summarise(ctx context.Context, filter ListFilter) (Summary, error) {
	query := `SELECT
COALESCE(SUM(amount) FILTER (WHERE tx_type = 'INCOME'), 0),
COALESCE(SUM(amount) FILTER (WHERE tx_type = 'EXPENSE'), 0)
FROM transactions WHERE ($1::timestamptz IS NULL OR tx_date >= $1) AND ($2::timestamptz IS NULL OR tx_date <= $2)`
	summary := Summary{From: filter.From, To: filter.To}
	err := r.pool.QueryRow(ctx, query, nullTime(filter.From), nullTime(filter.To)).Scan(&summary.Income, &summary.Expense)
	if err != nil {
		return Summary{}, err
	}
	summary.Net = summary.Income - summary.Expense
	return summary, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
