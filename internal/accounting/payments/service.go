package payments

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
	"github.com/openbooks-erp/openbooks/internal/ap"
	"github.com/openbooks-erp/openbooks/internal/ar"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

// EntryBuilder turns a recorded payment into the balanced AUTO_PAYMENT
// lines: the bank leg for the full amount and one AR/AP leg per allocation.
type EntryBuilder interface {
	BuildPaymentEntry(ctx context.Context, p Payment, actorID int64) (journals.CreateEntryInput, error)
}

// JournalPort is the slice of the journal service payment recording needs.
type JournalPort interface {
	CreateAndPostTx(ctx context.Context, tx journals.TxRepository, in journals.CreateEntryInput, actorID int64) (journals.JournalEntry, error)
}

// OpenDocsPort lists open documents FIFO for allocation suggestions.
type OpenDocsPort interface {
	OpenInvoices(ctx context.Context, companyID, customerID int64) ([]ar.Invoice, error)
	OpenBills(ctx context.Context, companyID, supplierID int64) ([]ap.Bill, error)
}

// Service records payments and suggests FIFO allocations.
type Service struct {
	repo     Repository
	docs     OpenDocsPort
	journals JournalPort
	builder  EntryBuilder
	audit    journals.AuditPort
	now      func() time.Time
}

func NewService(repo Repository, docs OpenDocsPort, journalSvc JournalPort, builder EntryBuilder, audit journals.AuditPort) *Service {
	return &Service{repo: repo, docs: docs, journals: journalSvc, builder: builder, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, companyID int64, limit, offset int) ([]Payment, error) {
	return s.repo.List(ctx, companyID, limit, offset)
}

func (s *Service) Get(ctx context.Context, companyID, paymentID int64) (Payment, error) {
	return s.repo.Get(ctx, companyID, paymentID)
}

// SuggestResult pairs the proposed allocations with the unallocatable rest.
type SuggestResult struct {
	Suggestions []Suggestion
	Remainder   decimal.Decimal
}

// Suggest proposes FIFO allocations of amount across the counterparty's open
// documents.
func (s *Service) Suggest(ctx context.Context, companyID int64, paymentType PaymentType, counterpartyID int64, amount decimal.Decimal) (SuggestResult, error) {
	if !amount.IsPositive() {
		return SuggestResult{}, errors.New("payments: amount must be positive")
	}
	var docs []OpenDocument
	switch paymentType {
	case PaymentReceived:
		invoices, err := s.docs.OpenInvoices(ctx, companyID, counterpartyID)
		if err != nil {
			return SuggestResult{}, err
		}
		for _, inv := range invoices {
			docs = append(docs, OpenDocument{ID: inv.ID, Number: inv.Number, Date: inv.InvoiceDate, BalanceDue: inv.BalanceDue})
		}
	case PaymentMade:
		bills, err := s.docs.OpenBills(ctx, companyID, counterpartyID)
		if err != nil {
			return SuggestResult{}, err
		}
		for _, bill := range bills {
			docs = append(docs, OpenDocument{ID: bill.ID, Number: bill.Number, Date: bill.BillDate, BalanceDue: bill.BalanceDue})
		}
	default:
		return SuggestResult{}, fmt.Errorf("payments: unknown payment type %q", paymentType)
	}
	suggestions, remainder := SuggestAllocations(amount, docs)
	return SuggestResult{Suggestions: suggestions, Remainder: remainder}, nil
}

// AllocationInput applies part of the payment to one document.
type AllocationInput struct {
	DocumentID int64
	Amount     decimal.Decimal
}

// RecordInput groups fields for recording a payment.
type RecordInput struct {
	CompanyID      int64
	Type           PaymentType
	CounterpartyID int64
	PaymentDate    time.Time
	Amount         decimal.Decimal
	Method         string
	Reference      string
	Memo           string
	BankAccountID  int64
	Allocations    []AllocationInput
	CreatedBy      int64
}

func (in RecordInput) validate() error {
	if in.CompanyID == 0 || in.CounterpartyID == 0 {
		return errors.New("payments: company and counterparty required")
	}
	switch in.Type {
	case PaymentReceived, PaymentMade:
	default:
		return fmt.Errorf("payments: unknown payment type %q", in.Type)
	}
	if in.PaymentDate.IsZero() {
		return errors.New("payments: payment date required")
	}
	if !in.Amount.IsPositive() {
		return errors.New("payments: amount must be positive")
	}
	if in.BankAccountID == 0 {
		return errors.New("payments: bank account required")
	}
	if len(in.Allocations) == 0 {
		return errors.New("payments: at least one allocation required")
	}
	total := decimal.Zero
	for idx, alloc := range in.Allocations {
		if alloc.DocumentID == 0 {
			return fmt.Errorf("payments: allocation %d missing document", idx)
		}
		if !alloc.Amount.IsPositive() {
			return fmt.Errorf("payments: allocation %d amount must be positive", idx)
		}
		total = total.Add(alloc.Amount)
	}
	if !shared.ApproxEqual(total, in.Amount) {
		return fmt.Errorf("%w: allocated %s, payment %s",
			shared.ErrAllocationMismatch, total.StringFixed(2), in.Amount.StringFixed(2))
	}
	return nil
}

// RecordPayment persists the payment, applies every allocation to its
// document, posts the AUTO_PAYMENT entry, and moves the counterparty
// balance. All of it commits in one transaction or none of it does.
func (s *Service) RecordPayment(ctx context.Context, in RecordInput) (Payment, error) {
	if err := in.validate(); err != nil {
		return Payment{}, err
	}
	amount := shared.Money2(in.Amount)
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		name, err := s.lockCounterparty(ctx, tx, in)
		if err != nil {
			return err
		}
		if err := s.checkBankAccount(ctx, tx, in.CompanyID, in.BankAccountID); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, in.CompanyID, internalshared.DocTypePayment)
		if err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			CompanyID:        in.CompanyID,
			Number:           number,
			Type:             in.Type,
			CounterpartyID:   in.CounterpartyID,
			CounterpartyName: name,
			PaymentDate:      in.PaymentDate,
			Amount:           amount,
			Method:           in.Method,
			Reference:        in.Reference,
			Memo:             in.Memo,
			BankAccountID:    in.BankAccountID,
			SourceID:         uuid.New(),
			CreatedBy:        in.CreatedBy,
		})
		if err != nil {
			return err
		}
		for _, alloc := range in.Allocations {
			applied := shared.Money2(alloc.Amount)
			var documentNumber string
			if in.Type == PaymentReceived {
				inv, err := tx.ApplyToInvoice(ctx, in.CompanyID, in.CounterpartyID, alloc.DocumentID, applied)
				if err != nil {
					return err
				}
				documentNumber = inv.Number
			} else {
				bill, err := tx.ApplyToBill(ctx, in.CompanyID, in.CounterpartyID, alloc.DocumentID, applied)
				if err != nil {
					return err
				}
				documentNumber = bill.Number
			}
			row, err := tx.InsertAllocation(ctx, Allocation{
				PaymentID:      payment.ID,
				DocumentID:     alloc.DocumentID,
				DocumentNumber: documentNumber,
				Amount:         applied,
			})
			if err != nil {
				return err
			}
			payment.Allocations = append(payment.Allocations, row)
		}

		entryInput, err := s.builder.BuildPaymentEntry(ctx, payment, in.CreatedBy)
		if err != nil {
			return err
		}
		entry, err := s.journals.CreateAndPostTx(ctx, tx, entryInput, in.CreatedBy)
		if err != nil {
			return err
		}
		if err := tx.AttachJournalEntry(ctx, payment.ID, entry.ID); err != nil {
			return err
		}
		payment.JournalEntryID = &entry.ID

		// Settling a document shrinks the open balance on both sides.
		if in.Type == PaymentReceived {
			err = tx.AdjustCustomerBalance(ctx, in.CompanyID, in.CounterpartyID, amount.Neg())
		} else {
			err = tx.AdjustSupplierBalance(ctx, in.CompanyID, in.CounterpartyID, amount.Neg())
		}
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, in.CompanyID, in.CreatedBy, payment)
	return payment, nil
}

func (s *Service) lockCounterparty(ctx context.Context, tx TxRepository, in RecordInput) (string, error) {
	if in.Type == PaymentReceived {
		customer, err := tx.LockCustomer(ctx, in.CompanyID, in.CounterpartyID)
		if err != nil {
			return "", err
		}
		return customer.Name, nil
	}
	supplier, err := tx.LockSupplier(ctx, in.CompanyID, in.CounterpartyID)
	if err != nil {
		return "", err
	}
	return supplier.Name, nil
}

func (s *Service) checkBankAccount(ctx context.Context, tx TxRepository, companyID, accountID int64) error {
	accts, err := tx.GetAccounts(ctx, companyID, []int64{accountID})
	if err != nil {
		return err
	}
	acct, ok := accts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	if !acct.IsActive {
		return shared.ErrAccountInactive
	}
	if acct.Type != accounts.AccountTypeAsset {
		return fmt.Errorf("payments: account %s is not an asset account", acct.Code)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, p Payment) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    "payment.record",
		Entity:    "payment",
		EntityID:  fmt.Sprintf("%d", p.ID),
		Meta: map[string]any{
			"number":      p.Number,
			"type":        string(p.Type),
			"amount":      p.Amount.StringFixed(2),
			"allocations": len(p.Allocations),
		},
		At: s.now(),
	})
}
