package ap

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus tracks the payable lifecycle.
type BillStatus string

const (
	BillStatusDraft   BillStatus = "DRAFT"
	BillStatusPosted  BillStatus = "POSTED"
	BillStatusPartial BillStatus = "PARTIAL"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusVoid    BillStatus = "VOID"
)

// Bill is a supplier payable. ExpenseAccountID chooses which expense account
// the AUTO_BILL entry debits; every other leg resolves by role.
type Bill struct {
	ID               int64
	CompanyID        int64
	Number           string
	SupplierID       int64
	SupplierName     string
	BillDate         time.Time
	DueDate          time.Time
	Memo             string
	ExpenseAccountID int64
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	AmountPaid       decimal.Decimal
	BalanceDue       decimal.Decimal
	Status           BillStatus
	JournalEntryID   *int64
	SourceID         uuid.UUID
	CreatedBy        int64
	PostedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Open reports whether the bill can still absorb payment.
func (b Bill) Open() bool {
	return (b.Status == BillStatusPosted || b.Status == BillStatusPartial) && b.BalanceDue.IsPositive()
}
