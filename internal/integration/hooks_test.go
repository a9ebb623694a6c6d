package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/payments"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/ar"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type chartStub struct {
	byRole map[accounts.Role]accounts.Account
}

func newChartStub() chartStub {
	return chartStub{byRole: map[accounts.Role]accounts.Account{
		accounts.RoleAccountsReceivable: {ID: 1, Code: "1100"},
		accounts.RoleAccountsPayable:    {ID: 2, Code: "2100"},
		accounts.RoleSalesRevenue:       {ID: 3, Code: "4000"},
		accounts.RoleOutputTax:          {ID: 4, Code: "2200"},
		accounts.RoleInputTax:           {ID: 5, Code: "1300"},
	}}
}

func (c chartStub) FindByRole(ctx context.Context, companyID int64, role accounts.Role) (accounts.Account, error) {
	a, ok := c.byRole[role]
	if !ok {
		return accounts.Account{}, shared.ErrRoleAccountMissing
	}
	return a, nil
}

func sumDebits(lines []journals.LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Debit)
	}
	return total
}

func sumCredits(lines []journals.LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Credit)
	}
	return total
}

func TestBuildInvoiceEntry(t *testing.T) {
	ctx := context.Background()
	h := NewHooks(newChartStub())
	inv := ar.Invoice{
		CompanyID:    1,
		Number:       "INV-000007",
		CustomerName: "Acme",
		InvoiceDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Subtotal:     money("100.00"),
		TaxAmount:    money("7.00"),
		Total:        money("107.00"),
		SourceID:     uuid.New(),
	}

	in, err := h.BuildInvoiceEntry(ctx, inv, 5)
	require.NoError(t, err)
	require.Equal(t, journals.EntryTypeAutoInvoice, in.Type)
	require.Equal(t, "AR", in.SourceModule)
	require.Equal(t, inv.SourceID, in.SourceID)
	require.Len(t, in.Lines, 3)
	require.Equal(t, int64(1), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(money("107.00")))
	require.Equal(t, int64(3), in.Lines[1].AccountID)
	require.True(t, in.Lines[1].Credit.Equal(money("100.00")))
	require.Equal(t, int64(4), in.Lines[2].AccountID)
	require.True(t, in.Lines[2].Credit.Equal(money("7.00")))
	require.True(t, sumDebits(in.Lines).Equal(sumCredits(in.Lines)))
}

func TestBuildInvoiceEntryNoTax(t *testing.T) {
	ctx := context.Background()
	h := NewHooks(newChartStub())
	inv := ar.Invoice{
		CompanyID:   1,
		Number:      "INV-000008",
		InvoiceDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Subtotal:    money("100.00"),
		TaxAmount:   decimal.Zero,
		Total:       money("100.00"),
		SourceID:    uuid.New(),
	}

	in, err := h.BuildInvoiceEntry(ctx, inv, 5)
	require.NoError(t, err)
	require.Len(t, in.Lines, 2)
}

func TestBuildInvoiceEntryMissingRole(t *testing.T) {
	ctx := context.Background()
	chart := newChartStub()
	delete(chart.byRole, accounts.RoleSalesRevenue)
	h := NewHooks(chart)

	_, err := h.BuildInvoiceEntry(ctx, ar.Invoice{
		CompanyID: 1,
		Subtotal:  money("100.00"),
		Total:     money("100.00"),
	}, 5)
	require.ErrorIs(t, err, shared.ErrRoleAccountMissing)
}

func TestBuildBillEntry(t *testing.T) {
	ctx := context.Background()
	h := NewHooks(newChartStub())
	bill := ap.Bill{
		CompanyID:        1,
		Number:           "BILL-000003",
		SupplierName:     "Supply Co",
		BillDate:         time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		ExpenseAccountID: 42,
		Subtotal:         money("300.00"),
		TaxAmount:        money("21.00"),
		Total:            money("321.00"),
		SourceID:         uuid.New(),
	}

	in, err := h.BuildBillEntry(ctx, bill, 5)
	require.NoError(t, err)
	require.Equal(t, journals.EntryTypeAutoBill, in.Type)
	require.Equal(t, "AP", in.SourceModule)
	require.Len(t, in.Lines, 3)
	require.Equal(t, int64(42), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(money("300.00")))
	require.Equal(t, int64(5), in.Lines[1].AccountID)
	require.True(t, in.Lines[1].Debit.Equal(money("21.00")))
	require.Equal(t, int64(2), in.Lines[2].AccountID)
	require.True(t, in.Lines[2].Credit.Equal(money("321.00")))
}

func TestBuildPaymentEntryReceived(t *testing.T) {
	ctx := context.Background()
	h := NewHooks(newChartStub())
	p := payments.Payment{
		CompanyID:     1,
		Number:        "PAY-000001",
		Type:          payments.PaymentReceived,
		PaymentDate:   time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount:        money("150.00"),
		BankAccountID: 9,
		SourceID:      uuid.New(),
		Allocations: []payments.Allocation{
			{DocumentID: 1, DocumentNumber: "INV-000001", Amount: money("100.00")},
			{DocumentID: 2, DocumentNumber: "INV-000002", Amount: money("50.00")},
		},
	}

	in, err := h.BuildPaymentEntry(ctx, p, 5)
	require.NoError(t, err)
	require.Equal(t, journals.EntryTypeAutoPayment, in.Type)
	require.Len(t, in.Lines, 3)
	require.Equal(t, int64(9), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(money("150.00")))
	// One AR leg per allocation, traceable by document number.
	require.Equal(t, "INV-000001", in.Lines[1].Memo)
	require.True(t, in.Lines[1].Credit.Equal(money("100.00")))
	require.Equal(t, "INV-000002", in.Lines[2].Memo)
	require.True(t, in.Lines[2].Credit.Equal(money("50.00")))
	require.True(t, sumDebits(in.Lines).Equal(sumCredits(in.Lines)))
}

func TestBuildPaymentEntryMade(t *testing.T) {
	ctx := context.Background()
	h := NewHooks(newChartStub())
	p := payments.Payment{
		CompanyID:     1,
		Number:        "PAY-000002",
		Type:          payments.PaymentMade,
		PaymentDate:   time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC),
		Amount:        money("80.00"),
		BankAccountID: 9,
		SourceID:      uuid.New(),
		Allocations: []payments.Allocation{
			{DocumentID: 1, DocumentNumber: "BILL-000001", Amount: money("80.00")},
		},
	}

	in, err := h.BuildPaymentEntry(ctx, p, 5)
	require.NoError(t, err)
	require.Len(t, in.Lines, 2)
	require.Equal(t, int64(2), in.Lines[0].AccountID)
	require.True(t, in.Lines[0].Debit.Equal(money("80.00")))
	require.Equal(t, int64(9), in.Lines[1].AccountID)
	require.True(t, in.Lines[1].Credit.Equal(money("80.00")))
}
