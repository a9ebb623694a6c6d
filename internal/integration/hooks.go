// Package integration builds the automatic journal entries that document
// events drive: invoice posting, bill posting, and payment recording. It is
// the only place that resolves chart accounts by role, so the document
// packages stay ignorant of the chart of accounts.
package integration

import (
	"context"
	"fmt"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/payments"
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/ar"
)

// Directory resolves well-known accounts from the chart.
type Directory interface {
	FindByRole(ctx context.Context, companyID int64, role accounts.Role) (accounts.Account, error)
}

// Hooks implements the EntryBuilder ports of ar, ap, and payments.
type Hooks struct {
	directory Directory
}

func NewHooks(directory Directory) *Hooks {
	return &Hooks{directory: directory}
}

// BuildInvoiceEntry debits Accounts Receivable for the total and credits
// Sales Revenue and Output Tax. The invoice's SourceID keys the idempotency
// link, so posting the same invoice twice fails as already linked.
func (h *Hooks) BuildInvoiceEntry(ctx context.Context, inv ar.Invoice, actorID int64) (journals.CreateEntryInput, error) {
	receivable, err := h.directory.FindByRole(ctx, inv.CompanyID, accounts.RoleAccountsReceivable)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}
	revenue, err := h.directory.FindByRole(ctx, inv.CompanyID, accounts.RoleSalesRevenue)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}
	lines := []journals.LineInput{
		{AccountID: receivable.ID, Debit: inv.Total, Memo: inv.Number},
		{AccountID: revenue.ID, Credit: inv.Subtotal, Memo: inv.Number},
	}
	if inv.TaxAmount.IsPositive() {
		outputTax, err := h.directory.FindByRole(ctx, inv.CompanyID, accounts.RoleOutputTax)
		if err != nil {
			return journals.CreateEntryInput{}, err
		}
		lines = append(lines, journals.LineInput{AccountID: outputTax.ID, Credit: inv.TaxAmount, Memo: inv.Number})
	}
	return journals.CreateEntryInput{
		CompanyID:    inv.CompanyID,
		Date:         inv.InvoiceDate,
		Reference:    inv.Number,
		Memo:         fmt.Sprintf("Invoice %s - %s", inv.Number, inv.CustomerName),
		Type:         journals.EntryTypeAutoInvoice,
		SourceModule: "AR",
		SourceID:     inv.SourceID,
		CreatedBy:    actorID,
		Lines:        lines,
	}, nil
}

// BuildBillEntry debits the bill's expense account and Input Tax, crediting
// Accounts Payable for the total.
func (h *Hooks) BuildBillEntry(ctx context.Context, b ap.Bill, actorID int64) (journals.CreateEntryInput, error) {
	payable, err := h.directory.FindByRole(ctx, b.CompanyID, accounts.RoleAccountsPayable)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}
	lines := []journals.LineInput{
		{AccountID: b.ExpenseAccountID, Debit: b.Subtotal, Memo: b.Number},
	}
	if b.TaxAmount.IsPositive() {
		inputTax, err := h.directory.FindByRole(ctx, b.CompanyID, accounts.RoleInputTax)
		if err != nil {
			return journals.CreateEntryInput{}, err
		}
		lines = append(lines, journals.LineInput{AccountID: inputTax.ID, Debit: b.TaxAmount, Memo: b.Number})
	}
	lines = append(lines, journals.LineInput{AccountID: payable.ID, Credit: b.Total, Memo: b.Number})
	return journals.CreateEntryInput{
		CompanyID:    b.CompanyID,
		Date:         b.BillDate,
		Reference:    b.Number,
		Memo:         fmt.Sprintf("Bill %s - %s", b.Number, b.SupplierName),
		Type:         journals.EntryTypeAutoBill,
		SourceModule: "AP",
		SourceID:     b.SourceID,
		CreatedBy:    actorID,
		Lines:        lines,
	}, nil
}

// BuildPaymentEntry moves money through the bank account against AR or AP,
// one control-account leg per allocation so the entry traces each settled
// document.
func (h *Hooks) BuildPaymentEntry(ctx context.Context, p payments.Payment, actorID int64) (journals.CreateEntryInput, error) {
	role := accounts.RoleAccountsReceivable
	if p.Type == payments.PaymentMade {
		role = accounts.RoleAccountsPayable
	}
	control, err := h.directory.FindByRole(ctx, p.CompanyID, role)
	if err != nil {
		return journals.CreateEntryInput{}, err
	}
	var lines []journals.LineInput
	if p.Type == payments.PaymentReceived {
		lines = append(lines, journals.LineInput{AccountID: p.BankAccountID, Debit: p.Amount, Memo: p.Number})
		for _, alloc := range p.Allocations {
			lines = append(lines, journals.LineInput{AccountID: control.ID, Credit: alloc.Amount, Memo: alloc.DocumentNumber})
		}
	} else {
		for _, alloc := range p.Allocations {
			lines = append(lines, journals.LineInput{AccountID: control.ID, Debit: alloc.Amount, Memo: alloc.DocumentNumber})
		}
		lines = append(lines, journals.LineInput{AccountID: p.BankAccountID, Credit: p.Amount, Memo: p.Number})
	}
	return journals.CreateEntryInput{
		CompanyID:    p.CompanyID,
		Date:         p.PaymentDate,
		Reference:    p.Number,
		Memo:         fmt.Sprintf("Payment %s - %s", p.Number, p.CounterpartyName),
		Type:         journals.EntryTypeAutoPayment,
		SourceModule: "PAYMENTS",
		SourceID:     p.SourceID,
		CreatedBy:    actorID,
		Lines:        lines,
	}, nil
}
