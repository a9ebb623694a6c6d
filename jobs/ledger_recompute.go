package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	jobmetrics "github.com/openbooks-erp/openbooks/internal/jobs"
	"github.com/openbooks-erp/openbooks/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	recomputeLockTTL     = 2 * time.Minute
	recomputeParallelism = 4
)

// LedgerRecomputeJob replays running balances for the accounts named in the
// task payload. Per-account redis locks keep concurrent runs from replaying
// the same account twice.
type LedgerRecomputeJob struct {
	Ledger  *ledger.Service
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerRecomputeJob wires dependencies for the recompute handler.
func NewLedgerRecomputeJob(ledgerSvc *ledger.Service, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerRecomputeJob {
	return &LedgerRecomputeJob{Ledger: ledgerSvc, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle processes ledger recompute tasks.
func (j *LedgerRecomputeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger recompute: handler not configured")
	}
	var payload LedgerRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CompanyID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerRecompute)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("company_id", payload.CompanyID))

	accountIDs := []int64{payload.AccountID}
	if payload.AccountID <= 0 {
		ids, err := j.Ledger.AccountIDs(ctx, payload.CompanyID)
		if err != nil {
			resultErr = err
			logger.Error("list ledger accounts", slog.Any("error", err))
			return resultErr
		}
		accountIDs = ids
	}
	if len(accountIDs) == 0 {
		logger.Info("no ledger accounts to recompute")
		return resultErr
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeParallelism)
	for _, accountID := range accountIDs {
		accountID := accountID
		g.Go(func() error {
			return j.recomputeOne(gctx, payload.CompanyID, accountID)
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("recompute accounts", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed ledger recompute",
		slog.Int("accounts", len(accountIDs)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LedgerRecomputeJob) recomputeOne(ctx context.Context, companyID, accountID int64) error {
	logger := j.logger().With(slog.Int64("company_id", companyID), slog.Int64("account_id", accountID))

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.RecomputeLockKey(companyID, accountID), recomputeLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("recompute already in flight, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}

	res, err := j.Ledger.RecomputeAccount(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	if res.RowsFixed > 0 {
		logger.Warn("rewrote running balances",
			slog.Int("rows_checked", res.RowsChecked),
			slog.Int("rows_fixed", res.RowsFixed))
	}
	return nil
}

func (j *LedgerRecomputeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerRecompute))
	}
	return slog.Default().With(slog.String("job", TaskLedgerRecompute))
}

func (j *LedgerRecomputeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
