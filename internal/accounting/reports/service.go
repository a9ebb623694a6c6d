package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service builds read-only financial reports from the ledger.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance builds the trial balance as of a date.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (TrialBalance, error) {
	rows, err := s.repo.BalancesAsOf(ctx, companyID, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(companyID, asOf, rows), nil
}

// AccountBalance returns one account's balance as of a date.
func (s *Service) AccountBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	return s.repo.AccountBalanceAsOf(ctx, companyID, accountID, asOf)
}
