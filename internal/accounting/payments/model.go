package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// PaymentType distinguishes money coming in from money going out.
type PaymentType string

const (
	// PaymentReceived settles customer invoices.
	PaymentReceived PaymentType = "RECEIVED"
	// PaymentMade settles supplier bills.
	PaymentMade PaymentType = "MADE"
)

// Payment is a settlement against one counterparty, fully allocated across
// that counterparty's open documents.
type Payment struct {
	ID               int64
	CompanyID        int64
	Number           string
	Type             PaymentType
	CounterpartyID   int64
	CounterpartyName string
	PaymentDate      time.Time
	Amount           decimal.Decimal
	Method           string
	Reference        string
	Memo             string
	// BankAccountID is the asset account the money moves through.
	BankAccountID  int64
	JournalEntryID *int64
	SourceID       uuid.UUID
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Allocations    []Allocation
}

// Allocation applies part of a payment to one invoice or bill.
type Allocation struct {
	ID             int64
	PaymentID      int64
	DocumentID     int64
	DocumentNumber string
	Amount         decimal.Decimal
}

// OpenDocument is the slice of an invoice or bill the allocator needs.
type OpenDocument struct {
	ID         int64
	Number     string
	Date       time.Time
	BalanceDue decimal.Decimal
}

// Suggestion is one proposed allocation from SuggestAllocations.
type Suggestion struct {
	DocumentID     int64
	DocumentNumber string
	Amount         decimal.Decimal
}

// SuggestAllocations greedily applies amount to the documents oldest first
// and returns the proposed allocations plus whatever could not be placed.
// Callers pass documents already sorted FIFO.
func SuggestAllocations(amount decimal.Decimal, docs []OpenDocument) ([]Suggestion, decimal.Decimal) {
	remaining := shared.Money2(amount)
	var suggestions []Suggestion
	for _, doc := range docs {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, doc.BalanceDue)
		if !take.IsPositive() {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			DocumentID:     doc.ID,
			DocumentNumber: doc.Number,
			Amount:         shared.Money2(take),
		})
		remaining = remaining.Sub(take)
	}
	return suggestions, shared.Money2(remaining)
}
