package ap

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
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository encapsulates DB operations for supplier bills.
type Repository interface {
	List(ctx context.Context, companyID int64, limit, offset int) ([]Bill, error)
	Get(ctx context.Context, companyID, billID int64) (Bill, error)
	ListOpenBySupplier(ctx context.Context, companyID, supplierID int64) ([]Bill, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository embeds the journal posting surface so bill posting and its
// AUTO_BILL entry commit together.
type TxRepository interface {
	journals.TxRepository
	InsertBill(ctx context.Context, b Bill) (Bill, error)
	GetBillForUpdate(ctx context.Context, companyID, billID int64) (Bill, error)
	MarkBillPosted(ctx context.Context, billID, journalEntryID int64, at time.Time) error
	MarkBillVoided(ctx context.Context, billID int64) error
	AdjustSupplierBalance(ctx context.Context, companyID, supplierID int64, delta decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const billColumns = `id, company_id, number, supplier_id, supplier_name, bill_date, due_date, memo, expense_account_id,
subtotal::text, tax_amount::text, total::text, amount_paid::text, balance_due::text, status,
je_id, source_id, created_by, posted_at, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var subtotal, tax, total, paid, due string
	err := row.Scan(&b.ID, &b.CompanyID, &b.Number, &b.SupplierID, &b.SupplierName,
		&b.BillDate, &b.DueDate, &b.Memo, &b.ExpenseAccountID,
		&subtotal, &tax, &total, &paid, &due, &b.Status,
		&b.JournalEntryID, &b.SourceID, &b.CreatedBy, &b.PostedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.ErrDocumentNotFound
		}
		return Bill{}, err
	}
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{{&b.Subtotal, subtotal}, {&b.TaxAmount, tax}, {&b.Total, total}, {&b.AmountPaid, paid}, {&b.BalanceDue, due}} {
		if *pair.dst, err = shared.ParseMoney(pair.src); err != nil {
			return Bill{}, err
		}
	}
	return b, nil
}

func collectBills(rows pgx.Rows) ([]Bill, error) {
	defer rows.Close()
	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (r *repository) List(ctx context.Context, companyID int64, limit, offset int) ([]Bill, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM ap_bills
WHERE company_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func (r *repository) Get(ctx context.Context, companyID, billID int64) (Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id=$1 AND id=$2`, companyID, billID))
}

// ListOpenBySupplier returns open bills oldest first, the order FIFO
// allocation consumes them in.
func (r *repository) ListOpenBySupplier(ctx context.Context, companyID, supplierID int64) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM ap_bills
WHERE company_id=$1 AND supplier_id=$2 AND status IN ('POSTED','PARTIAL') AND balance_due > 0
ORDER BY bill_date, id`, companyID, supplierID)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
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

func (r *txRepository) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ap_bills
(company_id, number, supplier_id, supplier_name, bill_date, due_date, memo, expense_account_id,
subtotal, tax_amount, total, amount_paid, balance_due, status, source_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id, created_at, updated_at`,
		b.CompanyID, b.Number, b.SupplierID, b.SupplierName, b.BillDate, b.DueDate, b.Memo, b.ExpenseAccountID,
		b.Subtotal.StringFixed(2), b.TaxAmount.StringFixed(2), b.Total.StringFixed(2),
		b.AmountPaid.StringFixed(2), b.BalanceDue.StringFixed(2), b.Status, b.SourceID, b.CreatedBy)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, companyID, billID int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, billID))
}

func (r *txRepository) MarkBillPosted(ctx context.Context, billID, journalEntryID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ap_bills SET status=$2, je_id=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		billID, BillStatusPosted, journalEntryID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) MarkBillVoided(ctx context.Context, billID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ap_bills SET status=$2, updated_at=NOW() WHERE id=$1`, billID, BillStatusVoid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) AdjustSupplierBalance(ctx context.Context, companyID, supplierID int64, delta decimal.Decimal) error {
	return suppliers.AdjustBalanceTx(ctx, r.tx, companyID, supplierID, delta)
}

// GetBillForUpdateTx row-locks a bill inside the caller's transaction. Used
// by the payment allocator, which owns its own transaction.
func GetBillForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, billID int64) (Bill, error) {
	return scanBill(tx.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, billID))
}

// ApplyPaymentTx adds amount to the bill's paid total inside the caller's
// transaction. The bill must belong to supplierID so a payment can only
// settle its own counterparty's documents. Status flips to PAID when the
// balance reaches zero, PARTIAL otherwise.
func ApplyPaymentTx(ctx context.Context, tx pgx.Tx, companyID, supplierID, billID int64, amount decimal.Decimal) (Bill, error) {
	bill, err := GetBillForUpdateTx(ctx, tx, companyID, billID)
	if err != nil {
		return Bill{}, err
	}
	if bill.SupplierID != supplierID {
		return Bill{}, fmt.Errorf("%w: bill %s belongs to supplier %d",
			shared.ErrAllocationWrongCounterparty, bill.Number, bill.SupplierID)
	}
	if !bill.Open() {
		return Bill{}, fmt.Errorf("%w: bill %s is %s", shared.ErrInvalidStatus, bill.Number, bill.Status)
	}
	if amount.Sub(bill.BalanceDue).GreaterThan(decimal.Zero) && !shared.ApproxEqual(amount, bill.BalanceDue) {
		return Bill{}, fmt.Errorf("%w: %s against bill %s (due %s)",
			shared.ErrAllocationExceedsBalance, amount.StringFixed(2), bill.Number, bill.BalanceDue.StringFixed(2))
	}
	bill.AmountPaid = shared.Money2(bill.AmountPaid.Add(amount))
	bill.BalanceDue = shared.Money2(bill.Total.Sub(bill.AmountPaid))
	if shared.ApproxZero(bill.BalanceDue) {
		bill.BalanceDue = decimal.Zero
		bill.Status = BillStatusPaid
	} else {
		bill.Status = BillStatusPartial
	}
	_, err = tx.Exec(ctx, `UPDATE ap_bills SET amount_paid=$2, balance_due=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		bill.ID, bill.AmountPaid.StringFixed(2), bill.BalanceDue.StringFixed(2), bill.Status)
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}
