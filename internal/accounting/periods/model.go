package periods

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
)

// PeriodType enumerates supported period granularities.
type PeriodType string

const (
	PeriodTypeMonthly   PeriodType = "MONTHLY"
	PeriodTypeQuarterly PeriodType = "QUARTERLY"
	PeriodTypeAnnual    PeriodType = "ANNUAL"
)

// Period is a posting window. Status moves OPEN -> CLOSED -> LOCKED, with
// CLOSED -> OPEN allowed for corrections until the period is locked.
type Period struct {
	ID         int64
	CompanyID  int64
	Name       string
	PeriodType PeriodType
	FiscalYear int
	StartDate  time.Time
	EndDate    time.Time
	Status     string
	ClosedBy   *int64
	ClosedAt   *time.Time
	// ClosingEntryID links the auto-generated closing journal entry, when the
	// period had revenue or expense activity to sweep.
	ClosingEntryID *int64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountNet is the signed debit-minus-credit activity of one account inside
// a date range.
type AccountNet struct {
	AccountID   int64
	AccountName string
	AccountType accounts.AccountType
	Net         decimal.Decimal
}

// Balance converts the signed net into the account's natural-side balance.
func (n AccountNet) Balance() decimal.Decimal {
	if accounts.NormalSideFor(n.AccountType) == accounts.NormalSideDebit {
		return n.Net
	}
	return n.Net.Neg()
}

// CloseSummary reports what a period close swept into retained earnings.
type CloseSummary struct {
	Period         Period
	TotalRevenue   decimal.Decimal
	TotalExpenses  decimal.Decimal
	NetIncome      decimal.Decimal
	AccountsClosed int
	ClosingEntryID *int64
}
