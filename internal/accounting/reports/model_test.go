package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestBuildTrialBalanceColumns(t *testing.T) {
	asOf := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	rows := []AccountBalanceRow{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: accounts.AccountTypeAsset, Balance: money("500.00")},
		{AccountID: 2, Code: "2100", Name: "AP", Type: accounts.AccountTypeLiability, Balance: money("200.00")},
		{AccountID: 3, Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, Balance: money("400.00")},
		{AccountID: 4, Code: "5000", Name: "Rent", Type: accounts.AccountTypeExpense, Balance: money("100.00")},
	}

	tb := BuildTrialBalance(1, asOf, rows)
	require.Len(t, tb.Lines, 4)
	require.True(t, tb.Lines[0].Debit.Equal(money("500.00")))
	require.True(t, tb.Lines[0].Credit.IsZero())
	require.True(t, tb.Lines[1].Credit.Equal(money("200.00")))
	require.True(t, tb.Lines[2].Credit.Equal(money("400.00")))
	require.True(t, tb.Lines[3].Debit.Equal(money("100.00")))
	require.True(t, tb.TotalDebit.Equal(money("600.00")))
	require.True(t, tb.TotalCredit.Equal(money("600.00")))
	require.True(t, tb.Balanced)
}

func TestBuildTrialBalanceSkipsZeroBalances(t *testing.T) {
	rows := []AccountBalanceRow{
		{AccountID: 1, Code: "1010", Type: accounts.AccountTypeAsset, Balance: decimal.Zero},
		{AccountID: 2, Code: "1020", Type: accounts.AccountTypeAsset, Balance: money("0.004")},
		{AccountID: 3, Code: "4000", Type: accounts.AccountTypeRevenue, Balance: money("50.00")},
	}

	tb := BuildTrialBalance(1, time.Now(), rows)
	require.Len(t, tb.Lines, 1)
	require.Equal(t, int64(3), tb.Lines[0].AccountID)
}

func TestBuildTrialBalanceNegativeNaturalBalanceFlipsColumn(t *testing.T) {
	// An overdrawn bank account shows up in the credit column.
	rows := []AccountBalanceRow{
		{AccountID: 1, Code: "1010", Type: accounts.AccountTypeAsset, Balance: money("-75.00")},
		{AccountID: 2, Code: "4000", Type: accounts.AccountTypeRevenue, Balance: money("-25.00")},
	}

	tb := BuildTrialBalance(1, time.Now(), rows)
	require.True(t, tb.Lines[0].Credit.Equal(money("75.00")))
	require.True(t, tb.Lines[0].Debit.IsZero())
	require.True(t, tb.Lines[1].Debit.Equal(money("25.00")))
	require.False(t, tb.Balanced)
}

func TestBuildTrialBalanceUnbalancedBooks(t *testing.T) {
	rows := []AccountBalanceRow{
		{AccountID: 1, Code: "1010", Type: accounts.AccountTypeAsset, Balance: money("100.00")},
		{AccountID: 2, Code: "4000", Type: accounts.AccountTypeRevenue, Balance: money("99.00")},
	}

	tb := BuildTrialBalance(1, time.Now(), rows)
	require.False(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(money("100.00")))
	require.True(t, tb.TotalCredit.Equal(money("99.00")))
}

func TestBuildTrialBalanceEmpty(t *testing.T) {
	tb := BuildTrialBalance(1, time.Now(), nil)
	require.Empty(t, tb.Lines)
	require.True(t, tb.Balanced)
}
