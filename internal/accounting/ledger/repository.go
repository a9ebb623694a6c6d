package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository reads ledger rows and runs the maintenance transactions.
type Repository interface {
	ByAccount(ctx context.Context, q AccountQuery) ([]Entry, error)
	ByJournalEntry(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error)
	AccountIDs(ctx context.Context, companyID int64) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the recompute/backfill surface. Replay queries lock the
// rows they read so a concurrent posting cannot interleave.
type TxRepository interface {
	DebitNormal(ctx context.Context, companyID, accountID int64) (bool, error)
	ListForReplay(ctx context.Context, companyID, accountID int64) ([]Entry, error)
	UpdateRunningBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error
	EntriesMissingRows(ctx context.Context, companyID int64) ([]int64, error)
	PostedLines(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error)
	InsertEntry(ctx context.Context, row Entry) error
}

// AccountQuery filters a ledger listing.
type AccountQuery struct {
	CompanyID int64
	AccountID int64
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, company_id, account_id, account_name, je_id, entry_number, transaction_date, memo,
debit::text, credit::text, running_balance::text, created_at`

// replayOrder is the canonical ledger ordering. Running balances are defined
// over exactly this sequence.
const replayOrder = `ORDER BY transaction_date, created_at, id`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var debit, credit, balance string
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.AccountID, &e.AccountName, &e.JournalEntryID, &e.EntryNumber,
			&e.TransactionDate, &e.Memo, &debit, &credit, &balance, &e.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if e.Debit, err = shared.ParseMoney(debit); err != nil {
			return nil, err
		}
		if e.Credit, err = shared.ParseMoney(credit); err != nil {
			return nil, err
		}
		if e.RunningBalance, err = shared.ParseMoney(balance); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) ByAccount(ctx context.Context, q AccountQuery) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	to := q.To
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE company_id=$1 AND account_id=$2 AND transaction_date BETWEEN $3 AND $4
`+replayOrder+` LIMIT $5 OFFSET $6`, q.CompanyID, q.AccountID, q.From, to, limit, q.Offset)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) ByJournalEntry(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE company_id=$1 AND je_id=$2 ORDER BY id`, companyID, journalEntryID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) AccountIDs(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT account_id FROM ledger_entries WHERE company_id=$1 ORDER BY account_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return shared.ErrConcurrencyConflict
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) DebitNormal(ctx context.Context, companyID, accountID int64) (bool, error) {
	var accountType string
	err := r.tx.QueryRow(ctx, `SELECT type FROM accounts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, accountID).Scan(&accountType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, shared.ErrAccountNotFound
		}
		return false, err
	}
	return accountType == "ASSET" || accountType == "EXPENSE", nil
}

func (r *txRepository) ListForReplay(ctx context.Context, companyID, accountID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE company_id=$1 AND account_id=$2 `+replayOrder+` FOR UPDATE`, companyID, accountID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) UpdateRunningBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET running_balance=$2 WHERE id=$1`, rowID, balance.StringFixed(2))
	return err
}

// EntriesMissingRows finds posted journal entries with no ledger rows at all,
// the failure mode backfill repairs.
func (r *txRepository) EntriesMissingRows(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT je.id FROM journal_entries je
WHERE je.company_id=$1 AND je.status='POSTED'
AND NOT EXISTS (SELECT 1 FROM ledger_entries l WHERE l.je_id = je.id)
ORDER BY je.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PostedLines reads the journal lines of a posted entry shaped as ledger rows
// with a zero running balance. The caller recomputes balances afterwards.
func (r *txRepository) PostedLines(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT jl.id, je.company_id, jl.account_id, jl.account_name, je.id, je.number,
je.date, COALESCE(NULLIF(jl.memo, ''), je.memo), jl.debit::text, jl.credit::text, '0'::text, je.created_at
FROM journal_lines jl
JOIN journal_entries je ON je.id = jl.je_id
WHERE je.company_id=$1 AND je.id=$2 ORDER BY jl.id`, companyID, journalEntryID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) InsertEntry(ctx context.Context, row Entry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries
(company_id, account_id, account_name, je_id, entry_number, transaction_date, memo, debit, credit, running_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		row.CompanyID, row.AccountID, row.AccountName, row.JournalEntryID, row.EntryNumber,
		row.TransactionDate, row.Memo,
		row.Debit.StringFixed(2), row.Credit.StringFixed(2), row.RunningBalance.StringFixed(2))
	return err
}
