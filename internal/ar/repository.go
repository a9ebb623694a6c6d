package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/masterdata/customers"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository encapsulates DB operations for customer invoices.
type Repository interface {
	List(ctx context.Context, companyID int64, limit, offset int) ([]Invoice, error)
	Get(ctx context.Context, companyID, invoiceID int64) (Invoice, error)
	ListOpenByCustomer(ctx context.Context, companyID, customerID int64) ([]Invoice, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository embeds the journal posting surface so invoice posting and its
// AUTO_INVOICE entry commit together.
type TxRepository interface {
	journals.TxRepository
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, companyID, invoiceID int64) (Invoice, error)
	MarkInvoicePosted(ctx context.Context, invoiceID, journalEntryID int64, at time.Time) error
	MarkInvoiceVoided(ctx context.Context, invoiceID int64) error
	AdjustCustomerBalance(ctx context.Context, companyID, customerID int64, delta decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceColumns = `id, company_id, number, customer_id, customer_name, invoice_date, due_date, memo,
subtotal::text, tax_amount::text, total::text, amount_paid::text, balance_due::text, status,
je_id, source_id, created_by, posted_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var subtotal, tax, total, paid, due string
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerID, &inv.CustomerName,
		&inv.InvoiceDate, &inv.DueDate, &inv.Memo,
		&subtotal, &tax, &total, &paid, &due, &inv.Status,
		&inv.JournalEntryID, &inv.SourceID, &inv.CreatedBy, &inv.PostedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrDocumentNotFound
		}
		return Invoice{}, err
	}
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{{&inv.Subtotal, subtotal}, {&inv.TaxAmount, tax}, {&inv.Total, total}, {&inv.AmountPaid, paid}, {&inv.BalanceDue, due}} {
		if *pair.dst, err = shared.ParseMoney(pair.src); err != nil {
			return Invoice{}, err
		}
	}
	return inv, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repository) List(ctx context.Context, companyID int64, limit, offset int) ([]Invoice, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices
WHERE company_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *repository) Get(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id=$1 AND id=$2`, companyID, invoiceID))
}

// ListOpenByCustomer returns payable-against invoices oldest first, the order
// FIFO allocation consumes them in.
func (r *repository) ListOpenByCustomer(ctx context.Context, companyID, customerID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices
WHERE company_id=$1 AND customer_id=$2 AND status IN ('POSTED','PARTIAL') AND balance_due > 0
ORDER BY invoice_date, id`, companyID, customerID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: journals.NewTxRepository(tx), tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return shared.ErrConcurrencyConflict
	}
	return err
}

type txRepository struct {
	journals.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ar_invoices
(company_id, number, customer_id, customer_name, invoice_date, due_date, memo,
subtotal, tax_amount, total, amount_paid, balance_due, status, source_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING id, created_at, updated_at`,
		inv.CompanyID, inv.Number, inv.CustomerID, inv.CustomerName, inv.InvoiceDate, inv.DueDate, inv.Memo,
		inv.Subtotal.StringFixed(2), inv.TaxAmount.StringFixed(2), inv.Total.StringFixed(2),
		inv.AmountPaid.StringFixed(2), inv.BalanceDue.StringFixed(2), inv.Status, inv.SourceID, inv.CreatedBy)
	if err := row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, invoiceID))
}

func (r *txRepository) MarkInvoicePosted(ctx context.Context, invoiceID, journalEntryID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_invoices SET status=$2, je_id=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		invoiceID, InvoiceStatusPosted, journalEntryID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) MarkInvoiceVoided(ctx context.Context, invoiceID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, invoiceID, InvoiceStatusVoid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) AdjustCustomerBalance(ctx context.Context, companyID, customerID int64, delta decimal.Decimal) error {
	return customers.AdjustBalanceTx(ctx, r.tx, companyID, customerID, delta)
}

// GetInvoiceForUpdateTx row-locks an invoice inside the caller's transaction.
// Used by the payment allocator, which owns its own transaction.
func GetInvoiceForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, invoiceID int64) (Invoice, error) {
	return scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, invoiceID))
}

// ApplyPaymentTx adds amount to the invoice's paid total inside the caller's
// transaction. The invoice must belong to customerID so a payment can only
// settle its own counterparty's documents. Status flips to PAID when the
// balance reaches zero, PARTIAL otherwise.
func ApplyPaymentTx(ctx context.Context, tx pgx.Tx, companyID, customerID, invoiceID int64, amount decimal.Decimal) (Invoice, error) {
	inv, err := GetInvoiceForUpdateTx(ctx, tx, companyID, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if inv.CustomerID != customerID {
		return Invoice{}, fmt.Errorf("%w: invoice %s belongs to customer %d",
			shared.ErrAllocationWrongCounterparty, inv.Number, inv.CustomerID)
	}
	if !inv.Open() {
		return Invoice{}, fmt.Errorf("%w: invoice %s is %s", shared.ErrInvalidStatus, inv.Number, inv.Status)
	}
	if amount.Sub(inv.BalanceDue).GreaterThan(decimal.Zero) && !shared.ApproxEqual(amount, inv.BalanceDue) {
		return Invoice{}, fmt.Errorf("%w: %s against invoice %s (due %s)",
			shared.ErrAllocationExceedsBalance, amount.StringFixed(2), inv.Number, inv.BalanceDue.StringFixed(2))
	}
	inv.AmountPaid = shared.Money2(inv.AmountPaid.Add(amount))
	inv.BalanceDue = shared.Money2(inv.Total.Sub(inv.AmountPaid))
	if shared.ApproxZero(inv.BalanceDue) {
		inv.BalanceDue = decimal.Zero
		inv.Status = InvoiceStatusPaid
	} else {
		inv.Status = InvoiceStatusPartial
	}
	_, err = tx.Exec(ctx, `UPDATE ar_invoices SET amount_paid=$2, balance_due=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		inv.ID, inv.AmountPaid.StringFixed(2), inv.BalanceDue.StringFixed(2), inv.Status)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
