package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository encapsulates DB operations for accounting periods.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Period, error)
	Get(ctx context.Context, companyID, periodID int64) (Period, error)
	Create(ctx context.Context, p Period) (Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository embeds the journal posting surface so the close flow can post
// the closing entry in the same transaction that flips the period status.
type TxRepository interface {
	journals.TxRepository
	LockPeriod(ctx context.Context, companyID, periodID int64) (Period, error)
	UpdateStatus(ctx context.Context, periodID int64, status string, closedBy *int64, closedAt *time.Time, closingEntryID *int64) error
	AccountNets(ctx context.Context, companyID int64, start, end time.Time, types []accounts.AccountType) ([]AccountNet, error)
	FindAccountByRole(ctx context.Context, companyID int64, role accounts.Role) (accounts.Account, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, company_id, name, period_type, fiscal_year, start_date, end_date, status,
closed_by, closed_at, closing_entry_id, notes, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.PeriodType, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status,
		&p.ClosedBy, &p.ClosedAt, &p.ClosingEntryID, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 ORDER BY start_date DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, periodID int64) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 AND id=$2`, companyID, periodID))
}

func (r *repository) Create(ctx context.Context, p Period) (Period, error) {
	// Overlap check and insert share one transaction so two concurrent
	// creations cannot both pass the check.
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var overlaps bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM accounting_periods WHERE company_id=$1 AND start_date <= $3 AND end_date >= $2)`,
			p.CompanyID, p.StartDate, p.EndDate).Scan(&overlaps); err != nil {
			return err
		}
		if overlaps {
			return shared.ErrPeriodOverlap
		}
		return tx.QueryRow(ctx, `INSERT INTO accounting_periods
(company_id, name, period_type, fiscal_year, start_date, end_date, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id, created_at, updated_at`,
			p.CompanyID, p.Name, p.PeriodType, p.FiscalYear, p.StartDate, p.EndDate, p.Status, p.Notes).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return Period{}, err
	}
	return p, nil
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

func (r *txRepository) LockPeriod(ctx context.Context, companyID, periodID int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, periodID))
}

func (r *txRepository) UpdateStatus(ctx context.Context, periodID int64, status string, closedBy *int64, closedAt *time.Time, closingEntryID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods
SET status=$2, closed_by=$3, closed_at=$4, closing_entry_id=$5, updated_at=NOW() WHERE id=$1`,
		periodID, status, closedBy, closedAt, closingEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

// AccountNets aggregates posted ledger activity per account inside the range.
// Reversal rows net out against the entries they undo, so voided activity
// contributes zero.
func (r *txRepository) AccountNets(ctx context.Context, companyID int64, start, end time.Time, types []accounts.AccountType) ([]AccountNet, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.name, a.type, COALESCE(SUM(l.debit - l.credit), 0)::text
FROM ledger_entries l
JOIN accounts a ON a.id = l.account_id
WHERE l.company_id=$1 AND l.transaction_date BETWEEN $2 AND $3 AND a.type = ANY($4)
GROUP BY a.id, a.name, a.type
ORDER BY a.id`, companyID, start, end, typeNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nets []AccountNet
	for rows.Next() {
		var n AccountNet
		var net string
		if err := rows.Scan(&n.AccountID, &n.AccountName, &n.AccountType, &net); err != nil {
			return nil, err
		}
		if n.Net, err = shared.ParseMoney(net); err != nil {
			return nil, err
		}
		nets = append(nets, n)
	}
	return nets, rows.Err()
}

func (r *txRepository) FindAccountByRole(ctx context.Context, companyID int64, role accounts.Role) (accounts.Account, error) {
	var a accounts.Account
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, type, subtype, role, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 AND role=$2 AND is_active LIMIT 1`, companyID, role).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrRoleAccountMissing
		}
		return accounts.Account{}, err
	}
	return a, nil
}
