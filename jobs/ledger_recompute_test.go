package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	"github.com/openbooks-erp/openbooks/internal/shared"
)

type fakeLedgerRepo struct {
	debitNormal map[int64]bool
	rows        map[int64][]ledger.Entry
	nextID      int64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		debitNormal: make(map[int64]bool),
		rows:        make(map[int64][]ledger.Entry),
	}
}

func (r *fakeLedgerRepo) addRow(accountID int64, day int, debit, credit, balance string) {
	r.nextID++
	r.rows[accountID] = append(r.rows[accountID], ledger.Entry{
		ID:              r.nextID,
		CompanyID:       1,
		AccountID:       accountID,
		TransactionDate: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		Debit:           decimal.RequireFromString(debit),
		Credit:          decimal.RequireFromString(credit),
		RunningBalance:  decimal.RequireFromString(balance),
	})
}

func (r *fakeLedgerRepo) ByAccount(ctx context.Context, q ledger.AccountQuery) ([]ledger.Entry, error) {
	return r.rows[q.AccountID], nil
}

func (r *fakeLedgerRepo) ByJournalEntry(ctx context.Context, companyID, journalEntryID int64) ([]ledger.Entry, error) {
	return nil, nil
}

func (r *fakeLedgerRepo) AccountIDs(ctx context.Context, companyID int64) ([]int64, error) {
	var ids []int64
	for id := int64(1); id <= r.nextID; id++ {
		if _, ok := r.rows[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return fn(ctx, r)
}

func (r *fakeLedgerRepo) DebitNormal(ctx context.Context, companyID, accountID int64) (bool, error) {
	return r.debitNormal[accountID], nil
}

func (r *fakeLedgerRepo) ListForReplay(ctx context.Context, companyID, accountID int64) ([]ledger.Entry, error) {
	return r.rows[accountID], nil
}

func (r *fakeLedgerRepo) UpdateRunningBalance(ctx context.Context, rowID int64, balance decimal.Decimal) error {
	for accountID, rows := range r.rows {
		for i, row := range rows {
			if row.ID == rowID {
				r.rows[accountID][i].RunningBalance = balance
			}
		}
	}
	return nil
}

func (r *fakeLedgerRepo) EntriesMissingRows(ctx context.Context, companyID int64) ([]int64, error) {
	return nil, nil
}

func (r *fakeLedgerRepo) PostedLines(ctx context.Context, companyID, journalEntryID int64) ([]ledger.Entry, error) {
	return nil, nil
}

func (r *fakeLedgerRepo) InsertEntry(ctx context.Context, row ledger.Entry) error {
	return nil
}

func testJob(t *testing.T) (*fakeLedgerRepo, *LedgerRecomputeJob, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeLedgerRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := ledger.NewService(logger, repo)
	job := NewLedgerRecomputeJob(svc, redislock.New(client), logger, nil)
	return repo, job, client
}

func TestRecomputeJobRepairsDrift(t *testing.T) {
	ctx := context.Background()
	repo, job, _ := testJob(t)
	repo.debitNormal[1] = true
	repo.addRow(1, 1, "100.00", "0.00", "100.00")
	repo.addRow(1, 2, "50.00", "0.00", "999.00") // drifted

	task, err := NewLedgerRecomputeTask(LedgerRecomputePayload{CompanyID: 1, AccountID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	require.True(t, repo.rows[1][1].RunningBalance.Equal(decimal.RequireFromString("150.00")))
}

func TestRecomputeJobFansOutToAllAccounts(t *testing.T) {
	ctx := context.Background()
	repo, job, _ := testJob(t)
	repo.debitNormal[1] = true
	repo.debitNormal[2] = false
	repo.addRow(1, 1, "100.00", "0.00", "1.00")
	repo.addRow(2, 1, "0.00", "100.00", "2.00")

	task, err := NewLedgerRecomputeTask(LedgerRecomputePayload{CompanyID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	require.True(t, repo.rows[1][0].RunningBalance.Equal(decimal.RequireFromString("100.00")))
	require.True(t, repo.rows[2][0].RunningBalance.Equal(decimal.RequireFromString("100.00")))
}

func TestRecomputeJobSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	repo, job, client := testJob(t)
	repo.debitNormal[1] = true
	repo.addRow(1, 1, "100.00", "0.00", "999.00")

	// Another worker holds the per-account lock.
	locker := redislock.New(client)
	lock, err := locker.Obtain(ctx, shared.RecomputeLockKey(1, 1), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = lock.Release(ctx) }()

	task, err := NewLedgerRecomputeTask(LedgerRecomputePayload{CompanyID: 1, AccountID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	// Drift untouched: the run was skipped, not failed.
	require.True(t, repo.rows[1][0].RunningBalance.Equal(decimal.RequireFromString("999.00")))
}

func TestRecomputeJobRejectsBadPayload(t *testing.T) {
	ctx := context.Background()
	_, job, _ := testJob(t)

	err := job.Handle(ctx, asynq.NewTask(TaskLedgerRecompute, []byte("{}")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(ctx, asynq.NewTask(TaskLedgerRecompute, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
