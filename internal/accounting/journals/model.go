package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
	EntryStatusVoid   EntryStatus = "VOID"
)

// EntryType distinguishes manual entries from auto-generated ones.
type EntryType string

const (
	EntryTypeManual      EntryType = "MANUAL"
	EntryTypeAutoInvoice EntryType = "AUTO_INVOICE"
	EntryTypeAutoBill    EntryType = "AUTO_BILL"
	EntryTypeAutoPayment EntryType = "AUTO_PAYMENT"
	EntryTypeClosing     EntryType = "CLOSING"
)

// JournalEntry captures a balanced transaction header.
type JournalEntry struct {
	ID           int64
	CompanyID    int64
	Number       string
	Date         time.Time
	Reference    string
	Memo         string
	Type         EntryType
	Status       EntryStatus
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	PostedBy     *int64
	PostedAt     *time.Time
	VoidedBy     *int64
	VoidedAt     *time.Time
	// ReversalOfID points from a reversing entry back to the entry it undoes.
	ReversalOfID *int64
	// ReversedByID points from a voided entry to its reversal.
	ReversedByID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Exactly one of
// Debit/Credit is positive on a postable line.
type JournalLine struct {
	ID          int64
	JournalID   int64
	AccountID   int64
	AccountCode string
	AccountName string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	CreatedAt   time.Time
}

// PostingPeriod is the slice of an accounting period the posting path needs.
// The periods package owns the full model; duplicating the lookup here keeps
// the posting transaction self-contained and avoids an import cycle.
type PostingPeriod struct {
	ID        int64
	Status    string
	StartDate time.Time
	EndDate   time.Time
}
