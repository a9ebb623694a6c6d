package journals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
	"github.com/openbooks-erp/openbooks/internal/platform/db"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error)
	Get(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	// WithTx runs fn inside a RepeatableRead transaction, retrying the whole
	// function on write conflicts.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available within a posting transaction.
// It deliberately includes period and account lookups so a posting runs
// against a single consistent snapshot.
type TxRepository interface {
	NextNumber(ctx context.Context, companyID int64, docType string) (string, error)
	InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) error
	GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time, totalDebit, totalCredit decimal.Decimal) error
	MarkVoided(ctx context.Context, entryID, actorID int64, at time.Time, reversalID int64) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (PostingPeriod, error)
	GetAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error)
	LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error)
	LatestBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error)
	InsertLedgerEntry(ctx context.Context, row ledger.Entry) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, company_id, number, date, reference, memo, type, status,
total_debit::text, total_credit::text, source_module, source_id, created_by,
posted_by, posted_at, voided_by, voided_at, reversal_of_id, reversed_by_id, created_at, updated_at`

const lineColumns = `id, je_id, account_id, account_code, account_name, debit::text, credit::text, memo, created_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var totalDebit, totalCredit string
	err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &e.Reference, &e.Memo, &e.Type, &e.Status,
		&totalDebit, &totalCredit, &e.SourceModule, &e.SourceID, &e.CreatedBy,
		&e.PostedBy, &e.PostedAt, &e.VoidedBy, &e.VoidedAt, &e.ReversalOfID, &e.ReversedByID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	if e.TotalDebit, err = shared.ParseMoney(totalDebit); err != nil {
		return JournalEntry{}, err
	}
	if e.TotalCredit, err = shared.ParseMoney(totalCredit); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func scanLines(rows pgx.Rows) ([]JournalLine, error) {
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var debit, credit string
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.AccountCode, &line.AccountName,
			&debit, &credit, &line.Memo, &line.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if line.Debit, err = shared.ParseMoney(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = shared.ParseMoney(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) List(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE je_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Lines, err = scanLines(rows); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
	if db.IsSerializationFailure(err) {
		return shared.ErrConcurrencyConflict
	}
	return err
}

// NewTxRepository wraps an open transaction. Exported so the periods and
// payments repositories can post journal entries inside their own
// transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context, companyID int64, docType string) (string, error) {
	return internalshared.NextDocumentNumber(ctx, r.tx, companyID, docType)
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(company_id, number, date, reference, memo, type, status, total_debit, total_credit, source_module, source_id, created_by, reversal_of_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id, created_at, updated_at`,
		e.CompanyID, e.Number, e.Date, e.Reference, e.Memo, e.Type, e.Status,
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2),
		e.SourceModule, e.SourceID, e.CreatedBy, e.ReversalOfID)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, account_code, account_name, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			entryID, line.AccountID, line.AccountCode, line.AccountName,
			line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID); err != nil {
		return err
	}
	return r.InsertLines(ctx, entryID, lines)
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE je_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Lines, err = scanLines(rows); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time, totalDebit, totalCredit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, posted_by=$3, posted_at=$4, total_debit=$5, total_credit=$6, updated_at=NOW() WHERE id=$1`,
		entryID, EntryStatusPosted, actorID, at, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, entryID, actorID int64, at time.Time, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, voided_by=$3, voided_at=$4, reversed_by_id=$5, updated_at=NOW() WHERE id=$1`,
		entryID, EntryStatusVoid, actorID, at, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

// FindPeriodByDate loads the period covering the posting date. Duplicated
// from the periods repository so the check shares the posting snapshot.
func (r *txRepository) FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (PostingPeriod, error) {
	var p PostingPeriod
	err := r.tx.QueryRow(ctx, `SELECT id, status, start_date, end_date
FROM accounting_periods WHERE company_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, companyID, date).
		Scan(&p.ID, &p.Status, &p.StartDate, &p.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingPeriod{}, shared.ErrNoPeriodForDate
		}
		return PostingPeriod{}, err
	}
	return p, nil
}

const txAccountColumns = `id, company_id, code, name, type, subtype, role, is_active, created_at, updated_at`

func (r *txRepository) fetchAccounts(ctx context.Context, companyID int64, ids []int64, lock bool) (map[int64]accounts.Account, error) {
	query := `SELECT ` + txAccountColumns + ` FROM accounts WHERE company_id=$1 AND id=ANY($2) ORDER BY id`
	if lock {
		// Ordered FOR UPDATE serializes concurrent postings touching the
		// same accounts without deadlocking.
		query += ` FOR UPDATE`
	}
	rows, err := r.tx.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) GetAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	return r.fetchAccounts(ctx, companyID, ids, false)
}

func (r *txRepository) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	return r.fetchAccounts(ctx, companyID, ids, true)
}

// LatestBalance returns the running balance of the most recent ledger row
// dated at or before asOf, tie-broken by creation order.
func (r *txRepository) LatestBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	var balance string
	err := r.tx.QueryRow(ctx, `SELECT running_balance::text FROM ledger_entries
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

func (r *txRepository) InsertLedgerEntry(ctx context.Context, row ledger.Entry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries
(company_id, account_id, account_name, je_id, entry_number, transaction_date, memo, debit, credit, running_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		row.CompanyID, row.AccountID, row.AccountName, row.JournalEntryID, row.EntryNumber,
		row.TransactionDate, row.Memo,
		row.Debit.StringFixed(2), row.Credit.StringFixed(2), row.RunningBalance.StringFixed(2))
	return err
}
