package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// LineInput describes a journal line on a create request.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// CreateEntryInput groups fields required to create a journal entry draft.
type CreateEntryInput struct {
	CompanyID    int64
	Date         time.Time
	Reference    string
	Memo         string
	Type         EntryType
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	Lines        []LineInput
}

// Validate applies the checks a draft must pass. Balance and period fencing
// are deferred to posting.
func (in CreateEntryInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("accounting: company id required")
	}
	if in.Date.IsZero() {
		return errors.New("accounting: entry date required")
	}
	if len(in.Lines) == 0 {
		return shared.ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return shared.ErrLineBothSides
		}
	}
	return nil
}

// ValidateForPosting applies the full posting checks: at least two lines,
// exactly one side per line, and balanced totals within MonetaryEpsilon.
func (in CreateEntryInput) ValidateForPosting() error {
	if err := in.Validate(); err != nil {
		return err
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return shared.ErrLineNoAmount
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !shared.ApproxEqual(debit, credit) {
		return fmt.Errorf("%w: debit %s != credit %s", shared.ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// UpdateLinesInput replaces a draft's lines.
type UpdateLinesInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Lines     []LineInput
}

// PostInput identifies an entry to post.
type PostInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Reason    string
}

func linesFromInput(in []LineInput) []JournalLine {
	out := make([]JournalLine, 0, len(in))
	for _, line := range in {
		out = append(out, JournalLine{
			AccountID: line.AccountID,
			Debit:     shared.Money2(line.Debit),
			Credit:    shared.Money2(line.Credit),
			Memo:      line.Memo,
		})
	}
	return out
}

func mirrorLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}
