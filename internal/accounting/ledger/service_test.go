package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedgerRepo struct {
	debitNormal map[int64]bool
	rows        map[int64][]Entry
	// posted journal lines keyed by journal entry id, used by backfill
	postedLines map[int64][]Entry
	nextID      int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		debitNormal: make(map[int64]bool),
		rows:        make(map[int64][]Entry),
		postedLines: make(map[int64][]Entry),
	}
}

func (r *memoryLedgerRepo) addRow(accountID int64, day int, debit, credit, balance string) {
	r.nextID++
	r.rows[accountID] = append(r.rows[accountID], Entry{
		ID:              r.nextID,
		CompanyID:       1,
		AccountID:       accountID,
		TransactionDate: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		Debit:           decimal.RequireFromString(debit),
		Credit:          decimal.RequireFromString(credit),
		RunningBalance:  decimal.RequireFromString(balance),
	})
}

func (r *memoryLedgerRepo) ByAccount(ctx context.Context, q AccountQuery) ([]Entry, error) {
	return append([]Entry(nil), r.rows[q.AccountID]...), nil
}

func (r *memoryLedgerRepo) ByJournalEntry(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error) {
	var out []Entry
	for _, rows := range r.rows {
		for _, row := range rows {
			if row.JournalEntryID == journalEntryID {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) AccountIDs(ctx context.Context, companyID int64) ([]int64, error) {
	var ids []int64
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryLedgerRepo) DebitNormal(ctx context.Context, companyID, accountID int64) (bool, error) {
	return r.debitNormal[accountID], nil
}

func (r *memoryLedgerRepo) ListForReplay(ctx context.Context, companyID, accountID int64) ([]Entry, error) {
	rows := append([]Entry(nil), r.rows[accountID]...)
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].TransactionDate.Equal(rows[j].TransactionDate) {
			return rows[i].TransactionDate.Before(rows[j].TransactionDate)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (r *memoryLedgerRepo) UpdateRunningBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error {
	for accountID, rows := range r.rows {
		for i, row := range rows {
			if row.ID == rowID {
				r.rows[accountID][i].RunningBalance = balance
				return nil
			}
		}
	}
	return nil
}

func (r *memoryLedgerRepo) EntriesMissingRows(ctx context.Context, companyID int64) ([]int64, error) {
	present := make(map[int64]bool)
	for _, rows := range r.rows {
		for _, row := range rows {
			present[row.JournalEntryID] = true
		}
	}
	var ids []int64
	for id := range r.postedLines {
		if !present[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryLedgerRepo) PostedLines(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error) {
	return append([]Entry(nil), r.postedLines[journalEntryID]...), nil
}

func (r *memoryLedgerRepo) InsertEntry(ctx context.Context, row Entry) error {
	r.nextID++
	row.ID = r.nextID
	r.rows[row.AccountID] = append(r.rows[row.AccountID], row)
	return nil
}

func testService(repo Repository) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
}

func TestRecomputeIntactLedgerChangesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.debitNormal[1] = true
	repo.addRow(1, 5, "100.00", "0.00", "100.00")
	repo.addRow(1, 10, "0.00", "30.00", "70.00")
	repo.addRow(1, 20, "50.00", "0.00", "120.00")

	res, err := testService(repo).RecomputeAccount(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowsChecked)
	require.Zero(t, res.RowsFixed)
}

func TestRecomputeRepairsDriftedBalances(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.debitNormal[1] = true
	repo.addRow(1, 5, "100.00", "0.00", "100.00")
	repo.addRow(1, 10, "0.00", "30.00", "999.00")
	repo.addRow(1, 20, "50.00", "0.00", "1049.00")

	svc := testService(repo)
	res, err := svc.RecomputeAccount(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowsChecked)
	require.Equal(t, 2, res.RowsFixed)

	rows, _ := repo.ListForReplay(ctx, 1, 1)
	require.True(t, rows[1].RunningBalance.Equal(decimal.RequireFromString("70.00")))
	require.True(t, rows[2].RunningBalance.Equal(decimal.RequireFromString("120.00")))

	// A second pass reaches a fixed point.
	res, err = svc.RecomputeAccount(ctx, 1, 1)
	require.NoError(t, err)
	require.Zero(t, res.RowsFixed)
}

func TestRecomputeCreditNormalAccount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.debitNormal[2] = false
	repo.addRow(2, 5, "0.00", "500.00", "0.00")
	repo.addRow(2, 10, "200.00", "0.00", "0.00")

	res, err := testService(repo).RecomputeAccount(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsFixed)

	rows, _ := repo.ListForReplay(ctx, 1, 2)
	require.True(t, rows[0].RunningBalance.Equal(decimal.RequireFromString("500.00")))
	require.True(t, rows[1].RunningBalance.Equal(decimal.RequireFromString("300.00")))
}

func TestBackfillRestoresMissingRows(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.debitNormal[1] = true
	repo.debitNormal[2] = false

	// Entry 100 has its ledger rows; entry 200 lost them.
	repo.rows[1] = append(repo.rows[1], Entry{
		ID: 1, CompanyID: 1, AccountID: 1, JournalEntryID: 100,
		TransactionDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Debit:           decimal.RequireFromString("100.00"),
		RunningBalance:  decimal.RequireFromString("100.00"),
	})
	repo.nextID = 1
	repo.postedLines[100] = repo.rows[1]
	repo.postedLines[200] = []Entry{
		{CompanyID: 1, AccountID: 1, JournalEntryID: 200,
			TransactionDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Debit:           decimal.RequireFromString("40.00")},
		{CompanyID: 1, AccountID: 2, JournalEntryID: 200,
			TransactionDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Credit:          decimal.RequireFromString("40.00")},
	}

	res, err := testService(repo).BackfillMissing(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.EntriesBackfilled)
	require.Equal(t, 2, res.RowsInserted)
	require.Len(t, res.Recomputed, 2)

	cashRows, _ := repo.ListForReplay(ctx, 1, 1)
	require.Len(t, cashRows, 2)
	require.True(t, cashRows[1].RunningBalance.Equal(decimal.RequireFromString("140.00")))

	revenueRows, _ := repo.ListForReplay(ctx, 1, 2)
	require.Len(t, revenueRows, 1)
	require.True(t, revenueRows[0].RunningBalance.Equal(decimal.RequireFromString("40.00")))
}

func TestBackfillNothingMissing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo()
	repo.debitNormal[1] = true
	repo.addRow(1, 5, "100.00", "0.00", "100.00")

	res, err := testService(repo).BackfillMissing(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, res.EntriesBackfilled)
	require.Zero(t, res.RowsInserted)
}
