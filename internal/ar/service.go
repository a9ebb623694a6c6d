package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/masterdata/customers"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

// EntryBuilder turns a posted invoice into the balanced AUTO_INVOICE lines.
// Implemented by the integration hooks so this package never resolves chart
// accounts itself.
type EntryBuilder interface {
	BuildInvoiceEntry(ctx context.Context, inv Invoice, actorID int64) (journals.CreateEntryInput, error)
}

// JournalPort is the slice of the journal service invoice posting needs.
type JournalPort interface {
	CreateAndPostTx(ctx context.Context, tx journals.TxRepository, in journals.CreateEntryInput, actorID int64) (journals.JournalEntry, error)
	VoidEntryTx(ctx context.Context, tx journals.TxRepository, companyID, entryID, actorID int64, reason string) (journals.JournalEntry, error)
}

// CustomerPort resolves the customer an invoice is billed to.
type CustomerPort interface {
	Get(ctx context.Context, companyID, customerID int64) (customers.Customer, error)
}

// Service manages the customer invoice lifecycle.
type Service struct {
	repo      Repository
	customers CustomerPort
	journals  JournalPort
	builder   EntryBuilder
	audit     journals.AuditPort
	now       func() time.Time
}

func NewService(repo Repository, customerRepo CustomerPort, journalSvc JournalPort, builder EntryBuilder, audit journals.AuditPort) *Service {
	return &Service{repo: repo, customers: customerRepo, journals: journalSvc, builder: builder, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, companyID int64, limit, offset int) ([]Invoice, error) {
	return s.repo.List(ctx, companyID, limit, offset)
}

func (s *Service) Get(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	return s.repo.Get(ctx, companyID, invoiceID)
}

func (s *Service) ListOpenByCustomer(ctx context.Context, companyID, customerID int64) ([]Invoice, error) {
	return s.repo.ListOpenByCustomer(ctx, companyID, customerID)
}

// CreateInput groups fields for a new draft invoice.
type CreateInput struct {
	CompanyID   int64
	CustomerID  int64
	InvoiceDate time.Time
	DueDate     time.Time
	Memo        string
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	CreatedBy   int64
}

func (in CreateInput) validate() error {
	if in.CompanyID == 0 || in.CustomerID == 0 {
		return errors.New("ar: company and customer required")
	}
	if in.InvoiceDate.IsZero() {
		return errors.New("ar: invoice date required")
	}
	if in.Subtotal.IsNegative() || in.TaxAmount.IsNegative() {
		return errors.New("ar: amounts cannot be negative")
	}
	if !in.Subtotal.Add(in.TaxAmount).IsPositive() {
		return errors.New("ar: invoice total must be positive")
	}
	return nil
}

// Create persists a draft invoice with a server-assigned number.
func (s *Service) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	if err := in.validate(); err != nil {
		return Invoice{}, err
	}
	customer, err := s.customers.Get(ctx, in.CompanyID, in.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	subtotal := shared.Money2(in.Subtotal)
	tax := shared.Money2(in.TaxAmount)
	total := subtotal.Add(tax)
	var invoice Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, in.CompanyID, internalshared.DocTypeInvoice)
		if err != nil {
			return err
		}
		invoice, err = tx.InsertInvoice(ctx, Invoice{
			CompanyID:    in.CompanyID,
			Number:       number,
			CustomerID:   in.CustomerID,
			CustomerName: customer.Name,
			InvoiceDate:  in.InvoiceDate,
			DueDate:      in.DueDate,
			Memo:         in.Memo,
			Subtotal:     subtotal,
			TaxAmount:    tax,
			Total:        total,
			AmountPaid:   decimal.Zero,
			BalanceDue:   total,
			Status:       InvoiceStatusDraft,
			SourceID:     uuid.New(),
			CreatedBy:    in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// Post transitions a draft to POSTED, creating and posting the AUTO_INVOICE
// journal entry and raising the customer balance, all in one transaction.
func (s *Service) Post(ctx context.Context, companyID, invoiceID, actorID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusDraft {
			return fmt.Errorf("%w: invoice is %s", shared.ErrInvalidStatus, invoice.Status)
		}
		in, err := s.builder.BuildInvoiceEntry(ctx, invoice, actorID)
		if err != nil {
			return err
		}
		entry, err := s.journals.CreateAndPostTx(ctx, tx, in, actorID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkInvoicePosted(ctx, invoice.ID, entry.ID, now); err != nil {
			return err
		}
		if err := tx.AdjustCustomerBalance(ctx, companyID, invoice.CustomerID, invoice.Total); err != nil {
			return err
		}
		invoice.Status = InvoiceStatusPosted
		invoice.JournalEntryID = &entry.ID
		invoice.PostedAt = &now
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "invoice.post", invoiceID, map[string]any{
		"number": invoice.Number,
		"total":  invoice.Total.StringFixed(2),
	})
	return invoice, nil
}

// Void reverses an unpaid posted invoice. Invoices with payments applied
// cannot be voided; the payment must be unwound first.
func (s *Service) Void(ctx context.Context, companyID, invoiceID, actorID int64, reason string) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoiceForUpdate(ctx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusPosted {
			return fmt.Errorf("%w: invoice is %s", shared.ErrInvalidStatus, invoice.Status)
		}
		if invoice.AmountPaid.IsPositive() {
			return fmt.Errorf("%w: invoice has payments applied", shared.ErrInvalidStatus)
		}
		if invoice.JournalEntryID != nil {
			if _, err := s.journals.VoidEntryTx(ctx, tx, companyID, *invoice.JournalEntryID, actorID, reason); err != nil {
				return err
			}
		}
		if err := tx.MarkInvoiceVoided(ctx, invoice.ID); err != nil {
			return err
		}
		if err := tx.AdjustCustomerBalance(ctx, companyID, invoice.CustomerID, invoice.Total.Neg()); err != nil {
			return err
		}
		invoice.Status = InvoiceStatusVoid
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "invoice.void", invoiceID, map[string]any{"reason": reason})
	return invoice, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "ar_invoice",
		EntityID:  fmt.Sprintf("%d", invoiceID),
		Meta:      meta,
		At:        s.now(),
	})
}
