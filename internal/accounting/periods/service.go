package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

const sourceModule = "PERIODS"

// JournalPort is the slice of the journal service the close flow needs.
type JournalPort interface {
	CreateAndPostTx(ctx context.Context, tx journals.TxRepository, in journals.CreateEntryInput, actorID int64) (journals.JournalEntry, error)
	VoidEntryTx(ctx context.Context, tx journals.TxRepository, companyID, entryID, actorID int64, reason string) (journals.JournalEntry, error)
}

// Service manages the period lifecycle: create, close, reopen, lock. Closing
// sweeps revenue and expense balances into retained earnings.
type Service struct {
	repo     Repository
	journals JournalPort
	audit    journals.AuditPort
	now      func() time.Time
}

func NewService(repo Repository, journalSvc JournalPort, audit journals.AuditPort) *Service {
	return &Service{repo: repo, journals: journalSvc, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, companyID, periodID int64) (Period, error) {
	return s.repo.Get(ctx, companyID, periodID)
}

// CreateInput groups fields for a new period.
type CreateInput struct {
	CompanyID  int64
	Name       string
	PeriodType PeriodType
	FiscalYear int
	StartDate  time.Time
	EndDate    time.Time
	Notes      string
}

func (in CreateInput) validate() error {
	if in.CompanyID == 0 {
		return errors.New("accounting: company id required")
	}
	if in.Name == "" {
		return errors.New("accounting: period name required")
	}
	switch in.PeriodType {
	case PeriodTypeMonthly, PeriodTypeQuarterly, PeriodTypeAnnual:
	default:
		return fmt.Errorf("accounting: unknown period type %q", in.PeriodType)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return errors.New("accounting: period range invalid")
	}
	return nil
}

// Create opens a new period. Ranges may not overlap existing periods of the
// same company.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.validate(); err != nil {
		return Period{}, err
	}
	return s.repo.Create(ctx, Period{
		CompanyID:  in.CompanyID,
		Name:       in.Name,
		PeriodType: in.PeriodType,
		FiscalYear: in.FiscalYear,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Status:     internalshared.PeriodStatusOpen,
		Notes:      in.Notes,
	})
}

// Close posts the closing entry and flips the period to CLOSED in one
// transaction. A period with no revenue or expense activity closes without a
// closing entry.
func (s *Service) Close(ctx context.Context, companyID, periodID, actorID int64, notes string) (CloseSummary, error) {
	var summary CloseSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.LockPeriod(ctx, companyID, periodID)
		if err != nil {
			return err
		}
		if err := transition(period.Status, internalshared.PeriodStatusClosed); err != nil {
			return err
		}

		nets, err := tx.AccountNets(ctx, companyID, period.StartDate, period.EndDate,
			[]accounts.AccountType{accounts.AccountTypeRevenue, accounts.AccountTypeExpense})
		if err != nil {
			return err
		}
		summary = summarize(period, nets)

		lines := closingLines(nets)
		var closingEntryID *int64
		if len(lines) > 0 {
			if !shared.ApproxZero(summary.NetIncome) {
				retained, err := tx.FindAccountByRole(ctx, companyID, accounts.RoleRetainedEarnings)
				if err != nil {
					return err
				}
				lines = append(lines, retainedLine(retained.ID, summary.NetIncome))
			}
			entry, err := s.journals.CreateAndPostTx(ctx, tx, journals.CreateEntryInput{
				CompanyID:    companyID,
				Date:         period.EndDate,
				Memo:         fmt.Sprintf("Closing entry for %s", period.Name),
				Type:         journals.EntryTypeClosing,
				SourceModule: sourceModule,
				SourceID:     uuid.New(),
				CreatedBy:    actorID,
				Lines:        lines,
			}, actorID)
			if err != nil {
				return err
			}
			closingEntryID = &entry.ID
		}

		now := s.now()
		if err := tx.UpdateStatus(ctx, periodID, internalshared.PeriodStatusClosed, &actorID, &now, closingEntryID); err != nil {
			return err
		}
		summary.Period.Status = internalshared.PeriodStatusClosed
		summary.Period.ClosedBy = &actorID
		summary.Period.ClosedAt = &now
		summary.Period.ClosingEntryID = closingEntryID
		summary.ClosingEntryID = closingEntryID
		return nil
	})
	if err != nil {
		return CloseSummary{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "period.close", periodID, map[string]any{
		"net_income":      summary.NetIncome.StringFixed(2),
		"accounts_closed": summary.AccountsClosed,
		"notes":           notes,
	})
	return summary, nil
}

// Reopen voids the closing entry (if any) and returns the period to OPEN.
// Locked periods cannot reopen.
func (s *Service) Reopen(ctx context.Context, companyID, periodID, actorID int64, reason string) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.LockPeriod(ctx, companyID, periodID)
		if err != nil {
			return err
		}
		if err := transition(period.Status, internalshared.PeriodStatusOpen); err != nil {
			return err
		}
		// Flip to OPEN before voiding so the reversal, dated inside this
		// period, passes the posting fence.
		if err := tx.UpdateStatus(ctx, periodID, internalshared.PeriodStatusOpen, nil, nil, nil); err != nil {
			return err
		}
		if period.ClosingEntryID != nil {
			if _, err := s.journals.VoidEntryTx(ctx, tx, companyID, *period.ClosingEntryID, actorID, "period reopened"); err != nil {
				return err
			}
		}
		period.Status = internalshared.PeriodStatusOpen
		period.ClosedBy = nil
		period.ClosedAt = nil
		period.ClosingEntryID = nil
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "period.reopen", periodID, map[string]any{"reason": reason})
	return period, nil
}

// Lock makes a closed period permanent. There is no unlock.
func (s *Service) Lock(ctx context.Context, companyID, periodID, actorID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = tx.LockPeriod(ctx, companyID, periodID)
		if err != nil {
			return err
		}
		if err := transition(period.Status, internalshared.PeriodStatusLocked); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, periodID, internalshared.PeriodStatusLocked, period.ClosedBy, period.ClosedAt, period.ClosingEntryID); err != nil {
			return err
		}
		period.Status = internalshared.PeriodStatusLocked
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "period.lock", periodID, nil)
	return period, nil
}

func transition(current, target string) error {
	if current == target {
		return fmt.Errorf("%w: period already %s", shared.ErrInvalidStatus, current)
	}
	if err := internalshared.ValidatePeriodTransition(current, target); err != nil {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidStatus, current, target)
	}
	return nil
}

func summarize(period Period, nets []AccountNet) CloseSummary {
	summary := CloseSummary{Period: period}
	for _, n := range nets {
		if shared.ApproxZero(n.Balance()) {
			continue
		}
		switch n.AccountType {
		case accounts.AccountTypeRevenue:
			summary.TotalRevenue = summary.TotalRevenue.Add(n.Balance())
		case accounts.AccountTypeExpense:
			summary.TotalExpenses = summary.TotalExpenses.Add(n.Balance())
		}
		summary.AccountsClosed++
	}
	summary.NetIncome = summary.TotalRevenue.Sub(summary.TotalExpenses)
	return summary
}

// closingLines zeroes each revenue and expense account by posting the
// opposite of its period balance.
func closingLines(nets []AccountNet) []journals.LineInput {
	var lines []journals.LineInput
	for _, n := range nets {
		balance := n.Balance()
		if shared.ApproxZero(balance) {
			continue
		}
		line := journals.LineInput{AccountID: n.AccountID, Memo: "Period close"}
		debitNormal := accounts.NormalSideFor(n.AccountType) == accounts.NormalSideDebit
		switch {
		case debitNormal && balance.IsPositive():
			line.Credit = balance
		case debitNormal:
			line.Debit = balance.Neg()
		case balance.IsPositive():
			line.Debit = balance
		default:
			line.Credit = balance.Neg()
		}
		lines = append(lines, line)
	}
	return lines
}

func retainedLine(accountID int64, netIncome decimal.Decimal) journals.LineInput {
	line := journals.LineInput{AccountID: accountID, Memo: "Net income to retained earnings"}
	if netIncome.IsNegative() {
		line.Debit = netIncome.Neg()
	} else {
		line.Credit = netIncome
	}
	return line
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "accounting_period",
		EntityID:  fmt.Sprintf("%d", periodID),
		Meta:      meta,
		At:        s.now(),
	})
}
