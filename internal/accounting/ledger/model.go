package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one posted journal line's effect on one account. Rows are
// append-only; only the recompute maintenance pass may rewrite RunningBalance.
type Entry struct {
	ID              int64
	CompanyID       int64
	AccountID       int64
	AccountName     string
	JournalEntryID  int64
	EntryNumber     string
	TransactionDate time.Time
	Memo            string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	RunningBalance  decimal.Decimal
	CreatedAt       time.Time
}

// Delta is the signed contribution of the row in the account's
// normal-balance convention.
func (e Entry) Delta(debitNormal bool) decimal.Decimal {
	if debitNormal {
		return e.Debit.Sub(e.Credit)
	}
	return e.Credit.Sub(e.Debit)
}
