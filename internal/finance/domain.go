package finance

import (
	"errors"
	"time"
)

// TransactionType enumerates ledger entry directions.
type TransactionType string

const (
	// TypeIncome represents money coming in (sales).
	TypeIncome TransactionType = "INCOME"
	// TypeExpense represents money going out (purchases).
	TypeExpense TransactionType = "EXPENSE"
)

// RelatedType ties a ledger entry to its originating document.
type RelatedType string

const (
	// RelatedInvoice marks entries posted by the sales engine.
	RelatedInvoice RelatedType = "INVOICE"
	// RelatedPurchase marks entries posted by the purchasing engine.
	RelatedPurchase RelatedType = "PURCHASE"
	// RelatedOther marks manually recorded entries.
	RelatedOther RelatedType = "OTHER"
)

// Transaction is an append-only ledger entry. Rows are created once and never
// mutated afterwards.
type Transaction struct {
	ID              int64           `json:"id"`
	Date            time.Time       `json:"date"`
	Type            TransactionType `json:"type"`
	Amount          float64         `json:"amount"`
	Description     string          `json:"description"`
	UserID          int64           `json:"user_id"`
	RelatedType     RelatedType     `json:"related_type"`
	InvoiceID       int64           `json:"invoice_id,omitempty"`
	PurchaseOrderID int64           `json:"purchase_order_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	Type    TransactionType
	Related RelatedType
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// Summary aggregates the ledger over a date range.
type Summary struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Income  float64   `json:"income"`
	Expense float64   `json:"expense"`
	Net     float64   `json:"net"`
}

// ManualEntryInput describes a manually recorded ledger entry.
type ManualEntryInput struct {
	Date        time.Time
	Type        TransactionType
	Amount      float64
	Description string
	UserID      int64
}

// ErrValidation indicates a malformed ledger entry.
var ErrValidation = errors.New("finance: invalid transaction")
