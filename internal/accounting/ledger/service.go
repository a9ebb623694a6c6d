package ledger

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// RecomputeResult reports one account's recompute outcome.
type RecomputeResult struct {
	AccountID   int64
	RowsChecked int
	RowsFixed   int
}

// BackfillResult reports what a backfill pass repaired.
type BackfillResult struct {
	EntriesBackfilled int
	RowsInserted      int
	Recomputed        []RecomputeResult
}

// MetricsPort counts running balances rewritten by maintenance passes.
type MetricsPort interface {
	CountBalancesFixed(n int)
}

// Service serves ledger listings and runs the recompute and backfill
// maintenance passes.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics MetricsPort
}

func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{repo: repo, logger: logger}
}

// WithMetrics attaches a repair counter.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

func (s *Service) ByAccount(ctx context.Context, q AccountQuery) ([]Entry, error) {
	return s.repo.ByAccount(ctx, q)
}

func (s *Service) ByJournalEntry(ctx context.Context, companyID, journalEntryID int64) ([]Entry, error) {
	return s.repo.ByJournalEntry(ctx, companyID, journalEntryID)
}

func (s *Service) AccountIDs(ctx context.Context, companyID int64) ([]int64, error) {
	return s.repo.AccountIDs(ctx, companyID)
}

// RecomputeAccount replays the account's full ledger in canonical order and
// rewrites any running balance off by more than the monetary epsilon.
// Running it on an intact ledger changes nothing.
func (s *Service) RecomputeAccount(ctx context.Context, companyID, accountID int64) (RecomputeResult, error) {
	var result RecomputeResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = recomputeAccount(ctx, tx, companyID, accountID)
		return err
	})
	if err != nil {
		return RecomputeResult{}, err
	}
	if result.RowsFixed > 0 {
		s.logger.Warn("ledger balances rewritten",
			slog.Int64("company_id", companyID),
			slog.Int64("account_id", accountID),
			slog.Int("rows_fixed", result.RowsFixed))
		if s.metrics != nil {
			s.metrics.CountBalancesFixed(result.RowsFixed)
		}
	}
	return result, nil
}

func recomputeAccount(ctx context.Context, tx TxRepository, companyID, accountID int64) (RecomputeResult, error) {
	result := RecomputeResult{AccountID: accountID}
	debitNormal, err := tx.DebitNormal(ctx, companyID, accountID)
	if err != nil {
		return result, err
	}
	rows, err := tx.ListForReplay(ctx, companyID, accountID)
	if err != nil {
		return result, err
	}
	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.Delta(debitNormal))
		result.RowsChecked++
		if shared.ApproxEqual(row.RunningBalance, running) {
			continue
		}
		if err := tx.UpdateRunningBalance(ctx, row.ID, running); err != nil {
			return result, err
		}
		result.RowsFixed++
	}
	return result, nil
}

// BackfillMissing synthesizes ledger rows for posted journal entries that
// have none, then recomputes every account the repairs touched. Both halves
// run in one transaction.
func (s *Service) BackfillMissing(ctx context.Context, companyID int64) (BackfillResult, error) {
	var result BackfillResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entryIDs, err := tx.EntriesMissingRows(ctx, companyID)
		if err != nil {
			return err
		}
		touched := make(map[int64]struct{})
		for _, entryID := range entryIDs {
			lines, err := tx.PostedLines(ctx, companyID, entryID)
			if err != nil {
				return err
			}
			for _, row := range lines {
				if err := tx.InsertEntry(ctx, row); err != nil {
					return err
				}
				touched[row.AccountID] = struct{}{}
				result.RowsInserted++
			}
			result.EntriesBackfilled++
		}
		for accountID := range touched {
			r, err := recomputeAccount(ctx, tx, companyID, accountID)
			if err != nil {
				return err
			}
			result.Recomputed = append(result.Recomputed, r)
		}
		return nil
	})
	if err != nil {
		return BackfillResult{}, err
	}
	if result.EntriesBackfilled > 0 {
		s.logger.Warn("ledger rows backfilled",
			slog.Int64("company_id", companyID),
			slog.Int("entries", result.EntriesBackfilled),
			slog.Int("rows", result.RowsInserted))
	}
	if s.metrics != nil {
		fixed := 0
		for _, r := range result.Recomputed {
			fixed += r.RowsFixed
		}
		if fixed > 0 {
			s.metrics.CountBalancesFixed(fixed)
		}
	}
	return result, nil
}
