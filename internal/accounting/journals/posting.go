package journals

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
)

// postLedgerRows materializes one ledger row per journal line, carrying the
// account's running balance forward. This is the only writer of ledger rows
// on the request path; callers must hold row locks on every touched account
// so two postings never read the same previous balance.
func postLedgerRows(ctx context.Context, tx TxRepository, entry JournalEntry, accts map[int64]accounts.Account, now time.Time) error {
	// Lines may hit the same account more than once inside one entry, so
	// balances accumulate in memory after the initial tail read.
	balances := make(map[int64]decimal.Decimal, len(entry.Lines))
	for _, line := range entry.Lines {
		acct := accts[line.AccountID]
		prev, seen := balances[line.AccountID]
		if !seen {
			var err error
			prev, err = tx.LatestBalance(ctx, entry.CompanyID, line.AccountID, entry.Date)
			if err != nil {
				return err
			}
		}
		delta := line.Debit.Sub(line.Credit)
		if !acct.IsDebitNormal() {
			delta = line.Credit.Sub(line.Debit)
		}
		balance := prev.Add(delta)
		if err := tx.InsertLedgerEntry(ctx, ledger.Entry{
			CompanyID:       entry.CompanyID,
			AccountID:       line.AccountID,
			AccountName:     acct.Name,
			JournalEntryID:  entry.ID,
			EntryNumber:     entry.Number,
			TransactionDate: entry.Date,
			Memo:            lineMemo(entry, line),
			Debit:           line.Debit,
			Credit:          line.Credit,
			RunningBalance:  balance,
			CreatedAt:       now,
		}); err != nil {
			return err
		}
		balances[line.AccountID] = balance
	}
	return nil
}

func lineMemo(entry JournalEntry, line JournalLine) string {
	if line.Memo != "" {
		return line.Memo
	}
	return entry.Memo
}
