package ar

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks the receivable lifecycle. PARTIAL and PAID are driven
// by payment allocation, never set directly.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusPosted  InvoiceStatus = "POSTED"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice is a customer receivable. Total = Subtotal + TaxAmount and
// BalanceDue = Total - AmountPaid hold at all times.
type Invoice struct {
	ID           int64
	CompanyID    int64
	Number       string
	CustomerID   int64
	CustomerName string
	InvoiceDate  time.Time
	DueDate      time.Time
	Memo         string
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
	AmountPaid   decimal.Decimal
	BalanceDue   decimal.Decimal
	Status       InvoiceStatus
	// JournalEntryID links the AUTO_INVOICE entry once posted.
	JournalEntryID *int64
	SourceID       uuid.UUID
	CreatedBy      int64
	PostedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open reports whether the invoice can still absorb payment.
func (i Invoice) Open() bool {
	return (i.Status == InvoiceStatusPosted || i.Status == InvoiceStatusPartial) && i.BalanceDue.IsPositive()
}
