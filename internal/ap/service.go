package ap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

// EntryBuilder turns a posted bill into the balanced AUTO_BILL lines.
type EntryBuilder interface {
	BuildBillEntry(ctx context.Context, b Bill, actorID int64) (journals.CreateEntryInput, error)
}

// JournalPort is the slice of the journal service bill posting needs.
type JournalPort interface {
	CreateAndPostTx(ctx context.Context, tx journals.TxRepository, in journals.CreateEntryInput, actorID int64) (journals.JournalEntry, error)
	VoidEntryTx(ctx context.Context, tx journals.TxRepository, companyID, entryID, actorID int64, reason string) (journals.JournalEntry, error)
}

// Service manages the supplier bill lifecycle.
// SupplierPort resolves the supplier a bill is owed to.
type SupplierPort interface {
	Get(ctx context.Context, companyID, supplierID int64) (suppliers.Supplier, error)
}

type Service struct {
	repo      Repository
	suppliers SupplierPort
	journals  JournalPort
	builder   EntryBuilder
	audit     journals.AuditPort
	now       func() time.Time
}

func NewService(repo Repository, supplierRepo SupplierPort, journalSvc JournalPort, builder EntryBuilder, audit journals.AuditPort) *Service {
	return &Service{repo: repo, suppliers: supplierRepo, journals: journalSvc, builder: builder, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, companyID int64, limit, offset int) ([]Bill, error) {
	return s.repo.List(ctx, companyID, limit, offset)
}

func (s *Service) Get(ctx context.Context, companyID, billID int64) (Bill, error) {
	return s.repo.Get(ctx, companyID, billID)
}

func (s *Service) ListOpenBySupplier(ctx context.Context, companyID, supplierID int64) ([]Bill, error) {
	return s.repo.ListOpenBySupplier(ctx, companyID, supplierID)
}

// CreateInput groups fields for a new draft bill.
type CreateInput struct {
	CompanyID        int64
	SupplierID       int64
	BillDate         time.Time
	DueDate          time.Time
	Memo             string
	ExpenseAccountID int64
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	CreatedBy        int64
}

func (in CreateInput) validate() error {
	if in.CompanyID == 0 || in.SupplierID == 0 {
		return errors.New("ap: company and supplier required")
	}
	if in.BillDate.IsZero() {
		return errors.New("ap: bill date required")
	}
	if in.ExpenseAccountID == 0 {
		return errors.New("ap: expense account required")
	}
	if in.Subtotal.IsNegative() || in.TaxAmount.IsNegative() {
		return errors.New("ap: amounts cannot be negative")
	}
	if !in.Subtotal.Add(in.TaxAmount).IsPositive() {
		return errors.New("ap: bill total must be positive")
	}
	return nil
}

// Create persists a draft bill with a server-assigned number.
func (s *Service) Create(ctx context.Context, in CreateInput) (Bill, error) {
	if err := in.validate(); err != nil {
		return Bill{}, err
	}
	supplier, err := s.suppliers.Get(ctx, in.CompanyID, in.SupplierID)
	if err != nil {
		return Bill{}, err
	}
	subtotal := shared.Money2(in.Subtotal)
	tax := shared.Money2(in.TaxAmount)
	total := subtotal.Add(tax)
	var bill Bill
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, in.CompanyID, internalshared.DocTypeBill)
		if err != nil {
			return err
		}
		bill, err = tx.InsertBill(ctx, Bill{
			CompanyID:        in.CompanyID,
			Number:           number,
			SupplierID:       in.SupplierID,
			SupplierName:     supplier.Name,
			BillDate:         in.BillDate,
			DueDate:          in.DueDate,
			Memo:             in.Memo,
			ExpenseAccountID: in.ExpenseAccountID,
			Subtotal:         subtotal,
			TaxAmount:        tax,
			Total:            total,
			AmountPaid:       decimal.Zero,
			BalanceDue:       total,
			Status:           BillStatusDraft,
			SourceID:         uuid.New(),
			CreatedBy:        in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// Post transitions a draft to POSTED, creating and posting the AUTO_BILL
// journal entry and raising the supplier balance, all in one transaction.
func (s *Service) Post(ctx context.Context, companyID, billID, actorID int64) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBillForUpdate(ctx, companyID, billID)
		if err != nil {
			return err
		}
		if bill.Status != BillStatusDraft {
			return fmt.Errorf("%w: bill is %s", shared.ErrInvalidStatus, bill.Status)
		}
		in, err := s.builder.BuildBillEntry(ctx, bill, actorID)
		if err != nil {
			return err
		}
		entry, err := s.journals.CreateAndPostTx(ctx, tx, in, actorID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkBillPosted(ctx, bill.ID, entry.ID, now); err != nil {
			return err
		}
		if err := tx.AdjustSupplierBalance(ctx, companyID, bill.SupplierID, bill.Total); err != nil {
			return err
		}
		bill.Status = BillStatusPosted
		bill.JournalEntryID = &entry.ID
		bill.PostedAt = &now
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "bill.post", billID, map[string]any{
		"number": bill.Number,
		"total":  bill.Total.StringFixed(2),
	})
	return bill, nil
}

// Void reverses an unpaid posted bill.
func (s *Service) Void(ctx context.Context, companyID, billID, actorID int64, reason string) (Bill, error) {
	var bill Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBillForUpdate(ctx, companyID, billID)
		if err != nil {
			return err
		}
		if bill.Status != BillStatusPosted {
			return fmt.Errorf("%w: bill is %s", shared.ErrInvalidStatus, bill.Status)
		}
		if bill.AmountPaid.IsPositive() {
			return fmt.Errorf("%w: bill has payments applied", shared.ErrInvalidStatus)
		}
		if bill.JournalEntryID != nil {
			if _, err := s.journals.VoidEntryTx(ctx, tx, companyID, *bill.JournalEntryID, actorID, reason); err != nil {
				return err
			}
		}
		if err := tx.MarkBillVoided(ctx, bill.ID); err != nil {
			return err
		}
		if err := tx.AdjustSupplierBalance(ctx, companyID, bill.SupplierID, bill.Total.Neg()); err != nil {
			return err
		}
		bill.Status = BillStatusVoid
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "bill.void", billID, map[string]any{"reason": reason})
	return bill, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, billID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "ap_bill",
		EntityID:  fmt.Sprintf("%d", billID),
		Meta:      meta,
		At:        s.now(),
	})
}
