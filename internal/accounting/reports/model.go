package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// AccountBalanceRow is one account's balance as of a date, taken from the
// latest ledger running balance at or before that date.
type AccountBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Balance   decimal.Decimal
}

// TrialBalanceLine places an account balance in its debit or credit column.
type TrialBalanceLine struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalance is the classic two-column proof that the books balance.
type TrialBalance struct {
	CompanyID   int64
	AsOf        time.Time
	Lines       []TrialBalanceLine
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// BuildTrialBalance folds balances into debit/credit columns by each
// account's normal side. A negative natural balance lands in the opposite
// column. Zero-balance accounts are omitted.
func BuildTrialBalance(companyID int64, asOf time.Time, rows []AccountBalanceRow) TrialBalance {
	tb := TrialBalance{
		CompanyID:   companyID,
		AsOf:        asOf,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, row := range rows {
		if shared.ApproxZero(row.Balance) {
			continue
		}
		line := TrialBalanceLine{
			AccountID: row.AccountID,
			Code:      row.Code,
			Name:      row.Name,
			Type:      row.Type,
		}
		debitNormal := accounts.NormalSideFor(row.Type) == accounts.NormalSideDebit
		switch {
		case debitNormal && row.Balance.IsPositive():
			line.Debit = row.Balance
		case debitNormal:
			line.Credit = row.Balance.Neg()
		case row.Balance.IsPositive():
			line.Credit = row.Balance
		default:
			line.Debit = row.Balance.Neg()
		}
		tb.TotalDebit = tb.TotalDebit.Add(line.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(line.Credit)
		tb.Lines = append(tb.Lines, line)
	}
	tb.Balanced = shared.ApproxEqual(tb.TotalDebit, tb.TotalCredit)
	return tb
}
