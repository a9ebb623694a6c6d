package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// Repository reads report source rows. Reports never write.
type Repository interface {
	BalancesAsOf(ctx context.Context, companyID int64, asOf time.Time) ([]AccountBalanceRow, error)
	AccountBalanceAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// BalancesAsOf picks each account's latest running balance at or before asOf
// using the canonical ledger ordering.
func (r *repository) BalancesAsOf(ctx context.Context, companyID int64, asOf time.Time) ([]AccountBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (l.account_id)
l.account_id, a.code, a.name, a.type, l.running_balance::text
FROM ledger_entries l
JOIN accounts a ON a.id = l.account_id
WHERE l.company_id=$1 AND l.transaction_date <= $2
ORDER BY l.account_id, l.transaction_date DESC, l.created_at DESC, l.id DESC`, companyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalanceRow
	for rows.Next() {
		var row AccountBalanceRow
		var balance string
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &balance); err != nil {
			return nil, err
		}
		if row.Balance, err = shared.ParseMoney(balance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AccountBalanceAsOf returns one account's balance, zero when the account has
// no ledger activity by asOf.
func (r *repository) AccountBalanceAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	var balance string
	err := r.pool.QueryRow(ctx, `SELECT running_balance::text FROM ledger_entries
WHERE company_id=$1 AND account_id=$2 AND transaction_date <= $3
ORDER BY transaction_date DESC, created_at DESC, id DESC LIMIT 1`, companyID, accountID, asOf).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return shared.ParseMoney(balance)
}
