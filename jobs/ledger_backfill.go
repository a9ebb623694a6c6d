package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	jobmetrics "github.com/openbooks-erp/openbooks/internal/jobs"
	"github.com/openbooks-erp/openbooks/internal/shared"
)

const backfillLockTTL = 5 * time.Minute

// LedgerBackfillJob restores ledger rows for posted journal entries that have
// none, then recomputes the touched accounts. One run per company at a time.
type LedgerBackfillJob struct {
	Ledger  *ledger.Service
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerBackfillJob wires dependencies for the backfill handler.
func NewLedgerBackfillJob(ledgerSvc *ledger.Service, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerBackfillJob {
	return &LedgerBackfillJob{Ledger: ledgerSvc, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle processes ledger backfill tasks.
func (j *LedgerBackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger backfill: handler not configured")
	}
	var payload LedgerBackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CompanyID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerBackfill)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("company_id", payload.CompanyID))

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.BackfillLockKey(payload.CompanyID), backfillLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("backfill already in flight, skipping")
			return resultErr
		}
		if err != nil {
			resultErr = err
			return resultErr
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}

	res, err := j.Ledger.BackfillMissing(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		logger.Error("backfill ledger rows", slog.Any("error", err))
		return resultErr
	}
	if res.EntriesBackfilled > 0 {
		logger.Warn("backfilled ledger rows",
			slog.Int("entries", res.EntriesBackfilled),
			slog.Int("rows", res.RowsInserted))
	} else {
		logger.Info("no missing ledger rows")
	}
	return resultErr
}

func (j *LedgerBackfillJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerBackfill))
	}
	return slog.Default().With(slog.String("job", TaskLedgerBackfill))
}

func (j *LedgerBackfillJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
