package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/ar"
	"github.com/openbooks-erp/openbooks/internal/masterdata/customers"
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository encapsulates DB operations for payments.
type Repository interface {
	List(ctx context.Context, companyID int64, limit, offset int) ([]Payment, error)
	Get(ctx context.Context, companyID, paymentID int64) (Payment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository spans payments, documents, counterparties, and journal
// posting so RecordPayment commits everything atomically.
type TxRepository interface {
	journals.TxRepository
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	InsertAllocation(ctx context.Context, a Allocation) (Allocation, error)
	AttachJournalEntry(ctx context.Context, paymentID, journalEntryID int64) error
	LockCustomer(ctx context.Context, companyID, customerID int64) (customers.Customer, error)
	LockSupplier(ctx context.Context, companyID, supplierID int64) (suppliers.Supplier, error)
	AdjustCustomerBalance(ctx context.Context, companyID, customerID int64, delta decimal.Decimal) error
	AdjustSupplierBalance(ctx context.Context, companyID, supplierID int64, delta decimal.Decimal) error
	ApplyToInvoice(ctx context.Context, companyID, customerID, invoiceID int64, amount decimal.Decimal) (ar.Invoice, error)
	ApplyToBill(ctx context.Context, companyID, supplierID, billID int64, amount decimal.Decimal) (ap.Bill, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const paymentColumns = `id, company_id, number, type, counterparty_id, counterparty_name, payment_date,
amount::text, method, reference, memo, bank_account_id, je_id, source_id, created_by, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var amount string
	err := row.Scan(&p.ID, &p.CompanyID, &p.Number, &p.Type, &p.CounterpartyID, &p.CounterpartyName, &p.PaymentDate,
		&amount, &p.Method, &p.Reference, &p.Memo, &p.BankAccountID, &p.JournalEntryID, &p.SourceID,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrPaymentNotFound
		}
		return Payment{}, err
	}
	if p.Amount, err = shared.ParseMoney(amount); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, companyID int64, limit, offset int) ([]Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE company_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, paymentID int64) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, paymentID))
	if err != nil {
		return Payment{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, payment_id, document_id, document_number, amount::text
FROM payment_allocations WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return Payment{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Allocation
		var amount string
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.DocumentID, &a.DocumentNumber, &amount); err != nil {
			return Payment{}, err
		}
		if a.Amount, err = shared.ParseMoney(amount); err != nil {
			return Payment{}, err
		}
		p.Allocations = append(p.Allocations, a)
	}
	return p, rows.Err()
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

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payments
(company_id, number, type, counterparty_id, counterparty_name, payment_date, amount, method, reference, memo, bank_account_id, source_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id, created_at, updated_at`,
		p.CompanyID, p.Number, p.Type, p.CounterpartyID, p.CounterpartyName, p.PaymentDate,
		p.Amount.StringFixed(2), p.Method, p.Reference, p.Memo, p.BankAccountID, p.SourceID, p.CreatedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) InsertAllocation(ctx context.Context, a Allocation) (Allocation, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payment_allocations (payment_id, document_id, document_number, amount)
VALUES ($1,$2,$3,$4) RETURNING id`,
		a.PaymentID, a.DocumentID, a.DocumentNumber, a.Amount.StringFixed(2)).Scan(&a.ID)
	if err != nil {
		return Allocation{}, err
	}
	return a, nil
}

func (r *txRepository) AttachJournalEntry(ctx context.Context, paymentID, journalEntryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payments SET je_id=$2, updated_at=NOW() WHERE id=$1`, paymentID, journalEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) LockCustomer(ctx context.Context, companyID, customerID int64) (customers.Customer, error) {
	return customers.GetForUpdateTx(ctx, r.tx, companyID, customerID)
}

func (r *txRepository) LockSupplier(ctx context.Context, companyID, supplierID int64) (suppliers.Supplier, error) {
	return suppliers.GetForUpdateTx(ctx, r.tx, companyID, supplierID)
}

func (r *txRepository) AdjustCustomerBalance(ctx context.Context, companyID, customerID int64, delta decimal.Decimal) error {
	return customers.AdjustBalanceTx(ctx, r.tx, companyID, customerID, delta)
}

func (r *txRepository) AdjustSupplierBalance(ctx context.Context, companyID, supplierID int64, delta decimal.Decimal) error {
	return suppliers.AdjustBalanceTx(ctx, r.tx, companyID, supplierID, delta)
}

func (r *txRepository) ApplyToInvoice(ctx context.Context, companyID, customerID, invoiceID int64, amount decimal.Decimal) (ar.Invoice, error) {
	return ar.ApplyPaymentTx(ctx, r.tx, companyID, customerID, invoiceID, amount)
}

func (r *txRepository) ApplyToBill(ctx context.Context, companyID, supplierID, billID int64, amount decimal.Decimal) (ap.Bill, error) {
	return ap.ApplyPaymentTx(ctx, r.tx, companyID, supplierID, billID, amount)
}
