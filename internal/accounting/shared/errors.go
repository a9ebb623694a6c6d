package shared

import "errors"

// Validation failures are rejected before any write.
var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrLineBothSides indicates a line with both debit and credit set.
	ErrLineBothSides = errors.New("accounting: line cannot carry both debit and credit")
	// ErrLineNoAmount indicates a line with neither debit nor credit.
	ErrLineNoAmount = errors.New("accounting: line requires a debit or credit amount")
	// ErrAllocationMismatch indicates allocations do not sum to the payment amount.
	ErrAllocationMismatch = errors.New("accounting: allocations do not sum to payment amount")
	// ErrAllocationExceedsBalance indicates an allocation above the document balance.
	ErrAllocationExceedsBalance = errors.New("accounting: allocation exceeds document balance")
	// ErrAllocationWrongCounterparty indicates an allocation against a document
	// owned by a different counterparty than the payment's.
	ErrAllocationWrongCounterparty = errors.New("accounting: allocation targets another counterparty's document")
)

// ErrRoleAccountMissing indicates a required well-known account is not configured.
// Surfaced verbatim so the operator knows to fix the chart of accounts.
var ErrRoleAccountMissing = errors.New("accounting: required account role not found in chart of accounts")

// Period fencing.
var (
	// ErrPeriodClosed indicates posting into a closed period.
	ErrPeriodClosed = errors.New("accounting: period is closed")
	// ErrPeriodLocked indicates posting into a locked period.
	ErrPeriodLocked = errors.New("accounting: period is locked")
	// ErrNoPeriodForDate indicates no period covers the posting date.
	ErrNoPeriodForDate = errors.New("accounting: no period covers the posting date")
	// ErrPeriodOverlap indicates a new period conflicts with an existing range.
	ErrPeriodOverlap = errors.New("accounting: period overlaps existing range")
)

// Not-found family: the referenced record is missing or belongs to another company.
var (
	ErrEntryNotFound       = errors.New("accounting: journal entry not found")
	ErrAccountNotFound     = errors.New("accounting: account not found")
	ErrPeriodNotFound      = errors.New("accounting: period not found")
	ErrPaymentNotFound     = errors.New("accounting: payment not found")
	ErrDocumentNotFound    = errors.New("accounting: document not found")
	ErrCounterpartyMissing = errors.New("accounting: counterparty not found")
)

// State machine violations.
var (
	// ErrInvalidStatus indicates the entity is not in a state that permits the action.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrAccountInactive indicates posting against a deactivated account.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrAccountTypeImmutable indicates a type change on an account with ledger history.
	ErrAccountTypeImmutable = errors.New("accounting: account type cannot change once ledger entries exist")
	// ErrSourceAlreadyLinked indicates idempotency conflict on auto postings.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked to a journal entry")
	// ErrSourceConflict indicates the source link row already exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrEntrySourceOwned indicates a direct void of an entry that settles a
	// source document. Only the owning module's void flow reverses both sides.
	ErrEntrySourceOwned = errors.New("accounting: entry belongs to a source document; void the document instead")
)

// ErrConcurrencyConflict indicates the transaction lost a write conflict on the
// ledger tail and the whole operation should be retried from scratch.
var ErrConcurrencyConflict = errors.New("accounting: concurrent ledger update, retry the operation")

// IsValidation reports whether err belongs to the validation family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnbalanced) ||
		errors.Is(err, ErrTooFewLines) ||
		errors.Is(err, ErrLineBothSides) ||
		errors.Is(err, ErrLineNoAmount) ||
		errors.Is(err, ErrAllocationMismatch) ||
		errors.Is(err, ErrAllocationExceedsBalance) ||
		errors.Is(err, ErrAllocationWrongCounterparty) ||
		errors.Is(err, ErrPeriodOverlap)
}

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrCounterpartyMissing)
}

// IsPeriodFenced reports whether err is a period fencing rejection.
func IsPeriodFenced(err error) bool {
	return errors.Is(err, ErrPeriodClosed) ||
		errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrNoPeriodForDate)
}
