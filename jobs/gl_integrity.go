package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	acctshared "github.com/openbooks-erp/openbooks/internal/accounting/shared"
	jobmetrics "github.com/openbooks-erp/openbooks/internal/jobs"
)

// GLIntegrityJob scans posted activity for debit/credit drift. Periods whose
// posted lines do not sum to zero are reported, and accounts whose stored
// running balance disagrees with the replayed sum get a recompute enqueued.
type GLIntegrityJob struct {
	Pool    *pgxpool.Pool
	Client  *Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Pool: pool, Client: client, Logger: logger, Metrics: metrics}
}

type periodDrift struct {
	PeriodID int64
	Name     string
	Debits   decimal.Decimal
	Credits  decimal.Decimal
}

// Handle processes GL integrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskGLIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companyIDs := []int64{payload.CompanyID}
	if payload.CompanyID <= 0 {
		ids, err := j.fetchCompanies(ctx)
		if err != nil {
			resultErr = err
			j.logger().Error("load companies", slog.Any("error", err))
			return resultErr
		}
		companyIDs = ids
	}

	start := time.Now()
	for _, companyID := range companyIDs {
		if err := j.checkCompany(ctx, companyID); err != nil {
			resultErr = err
			j.logger().Error("integrity check", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
	}
	j.logger().Info("completed integrity scan",
		slog.Int("companies", len(companyIDs)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *GLIntegrityJob) checkCompany(ctx context.Context, companyID int64) error {
	logger := j.logger().With(slog.Int64("company_id", companyID))

	drifts, err := j.periodDrift(ctx, companyID)
	if err != nil {
		return err
	}
	for _, d := range drifts {
		logger.Error("posted lines out of balance",
			slog.Int64("period_id", d.PeriodID),
			slog.String("period", d.Name),
			slog.String("debits", d.Debits.StringFixed(2)),
			slog.String("credits", d.Credits.StringFixed(2)))
		j.metrics().AddDrift(companyID, d.PeriodID, 1)
	}

	staleAccounts, err := j.staleBalances(ctx, companyID)
	if err != nil {
		return err
	}
	for _, accountID := range staleAccounts {
		logger.Warn("running balance drift, enqueueing recompute", slog.Int64("account_id", accountID))
		if j.Client == nil {
			continue
		}
		if _, err := j.Client.EnqueueLedgerRecompute(ctx, LedgerRecomputePayload{
			CompanyID: companyID,
			AccountID: accountID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// periodDrift sums posted journal lines per period. A healthy ledger nets to
// zero in every period.
func (j *GLIntegrityJob) periodDrift(ctx context.Context, companyID int64) ([]periodDrift, error) {
	rows, err := j.Pool.Query(ctx, `SELECT p.id, p.name, COALESCE(SUM(jl.debit), 0)::text, COALESCE(SUM(jl.credit), 0)::text
FROM accounting_periods p
JOIN journal_entries je ON je.company_id = p.company_id AND je.date BETWEEN p.start_date AND p.end_date
JOIN journal_lines jl ON jl.je_id = je.id
WHERE p.company_id = $1 AND je.status = 'POSTED'
GROUP BY p.id, p.name
ORDER BY p.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []periodDrift
	for rows.Next() {
		var d periodDrift
		var debits, credits string
		if err := rows.Scan(&d.PeriodID, &d.Name, &debits, &credits); err != nil {
			return nil, err
		}
		if d.Debits, err = acctshared.ParseMoney(debits); err != nil {
			return nil, err
		}
		if d.Credits, err = acctshared.ParseMoney(credits); err != nil {
			return nil, err
		}
		if !acctshared.ApproxEqual(d.Debits, d.Credits) {
			drifts = append(drifts, d)
		}
	}
	return drifts, rows.Err()
}

// staleBalances compares each account's latest stored running balance with the
// signed sum of its ledger rows.
func (j *GLIntegrityJob) staleBalances(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `WITH latest AS (
	SELECT DISTINCT ON (account_id) account_id, running_balance
	FROM ledger_entries
	WHERE company_id = $1
	ORDER BY account_id, transaction_date DESC, created_at DESC, id DESC
), sums AS (
	SELECT l.account_id,
		CASE WHEN a.type IN ('ASSET','EXPENSE')
			THEN SUM(l.debit - l.credit)
			ELSE SUM(l.credit - l.debit)
		END AS expected
	FROM ledger_entries l
	JOIN accounts a ON a.id = l.account_id
	WHERE l.company_id = $1
	GROUP BY l.account_id, a.type
)
SELECT latest.account_id
FROM latest
JOIN sums ON sums.account_id = latest.account_id
WHERE ABS(latest.running_balance - sums.expected) >= $2
ORDER BY latest.account_id`, companyID, acctshared.MonetaryEpsilon.String())
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

func (j *GLIntegrityJob) fetchCompanies(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT company_id FROM journal_entries WHERE status = 'POSTED' ORDER BY company_id`)
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

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
