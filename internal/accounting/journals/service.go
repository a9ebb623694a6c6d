package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalshared.AuditLog) error
}

// MetricsPort counts posted entries by type.
type MetricsPort interface {
	CountPosting(entryType string)
}

// Service validates, posts, and voids journal entries. Posting and the
// resulting ledger rows always commit in one transaction.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches a posting counter.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

func (s *Service) List(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	return s.repo.List(ctx, companyID, limit, offset)
}

func (s *Service) Get(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, companyID, entryID)
}

// CreateEntry persists a draft. Drafts are not fenced by periods and may stay
// unbalanced until posting.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.insertDraft(ctx, tx, in, nil)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// UpdateDraftLines replaces the lines of a draft entry. Posted and voided
// entries are immutable; corrections go through void and repost.
func (s *Service) UpdateDraftLines(ctx context.Context, in UpdateLinesInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntryForUpdate(ctx, in.CompanyID, in.EntryID)
		if err != nil {
			return err
		}
		if entry.Status != EntryStatusDraft {
			return shared.ErrInvalidStatus
		}
		draft := CreateEntryInput{CompanyID: in.CompanyID, Date: entry.Date, Lines: in.Lines}
		if err := draft.Validate(); err != nil {
			return err
		}
		lines, err := resolveLines(ctx, tx, in.CompanyID, in.Lines)
		if err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, entry.ID, lines); err != nil {
			return err
		}
		for i := range lines {
			lines[i].JournalID = entry.ID
		}
		entry.Lines = lines
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, in.CompanyID, in.ActorID, "journal.update", entry.ID, map[string]any{
		"number": entry.Number,
		"lines":  len(entry.Lines),
	})
	return entry, nil
}

// PostEntry transitions a draft to Posted and materializes its ledger rows.
func (s *Service) PostEntry(ctx context.Context, in PostInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.PostEntryTx(ctx, tx, in.CompanyID, in.EntryID, in.ActorID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, in.CompanyID, in.ActorID, "journal.post", entry.ID, map[string]any{
		"number": entry.Number,
		"debit":  entry.TotalDebit.StringFixed(2),
		"credit": entry.TotalCredit.StringFixed(2),
	})
	return entry, nil
}

// PostEntryTx posts an existing draft inside the caller's transaction.
func (s *Service) PostEntryTx(ctx context.Context, tx TxRepository, companyID, entryID, actorID int64) (JournalEntry, error) {
	entry, err := tx.GetEntryForUpdate(ctx, companyID, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Status != EntryStatusDraft {
		return JournalEntry{}, shared.ErrInvalidStatus
	}
	if err := postingInputOf(entry).ValidateForPosting(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.ensureOpenPeriod(ctx, tx, companyID, entry.Date); err != nil {
		return JournalEntry{}, err
	}
	accts, err := s.lockEntryAccounts(ctx, tx, entry)
	if err != nil {
		return JournalEntry{}, err
	}

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, line := range entry.Lines {
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	now := s.now()
	if err := tx.MarkPosted(ctx, entry.ID, actorID, now, totalDebit, totalCredit); err != nil {
		return JournalEntry{}, err
	}
	entry.Status = EntryStatusPosted
	entry.PostedBy = &actorID
	entry.PostedAt = &now
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit

	if err := postLedgerRows(ctx, tx, entry, accts, now); err != nil {
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.CountPosting(string(entry.Type))
	}
	return entry, nil
}

// CreateAndPostTx creates and posts an entry in one step inside the caller's
// transaction. This is the path auto-generated entries take.
func (s *Service) CreateAndPostTx(ctx context.Context, tx TxRepository, in CreateEntryInput, actorID int64) (JournalEntry, error) {
	return s.createAndPost(ctx, tx, in, actorID, nil)
}

func (s *Service) createAndPost(ctx context.Context, tx TxRepository, in CreateEntryInput, actorID int64, reversalOf *int64) (JournalEntry, error) {
	if err := in.ValidateForPosting(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.ensureOpenPeriod(ctx, tx, in.CompanyID, in.Date); err != nil {
		return JournalEntry{}, err
	}
	entry, err := s.insertDraft(ctx, tx, in, reversalOf)
	if err != nil {
		return JournalEntry{}, err
	}
	return s.PostEntryTx(ctx, tx, in.CompanyID, entry.ID, actorID)
}

func (s *Service) insertDraft(ctx context.Context, tx TxRepository, in CreateEntryInput, reversalOf *int64) (JournalEntry, error) {
	lines, err := resolveLines(ctx, tx, in.CompanyID, in.Lines)
	if err != nil {
		return JournalEntry{}, err
	}

	number, err := tx.NextNumber(ctx, in.CompanyID, internalshared.DocTypeJournal)
	if err != nil {
		return JournalEntry{}, err
	}
	entryType := in.Type
	if entryType == "" {
		entryType = EntryTypeManual
	}
	sourceModule := in.SourceModule
	if sourceModule == "" {
		sourceModule = "MANUAL"
	}
	sourceID := in.SourceID
	if sourceID == uuid.Nil {
		sourceID = uuid.New()
	}
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		CompanyID:    in.CompanyID,
		Number:       number,
		Date:         in.Date,
		Reference:    in.Reference,
		Memo:         in.Memo,
		Type:         entryType,
		Status:       EntryStatusDraft,
		SourceModule: sourceModule,
		SourceID:     sourceID,
		CreatedBy:    in.CreatedBy,
		ReversalOfID: reversalOf,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, entry.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkSource(ctx, sourceModule, sourceID, entry.ID); err != nil {
		if errors.Is(err, shared.ErrSourceConflict) {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	for i := range lines {
		lines[i].JournalID = entry.ID
	}
	entry.Lines = lines
	return entry, nil
}

// VoidEntry voids a posted entry by posting its mirror reversal. No row is
// ever removed; the original stays linked to the reversal for audit.
// Only manual entries may be voided here: entries posted by a source module
// settle a document, and voiding them alone would leave that document open.
func (s *Service) VoidEntry(ctx context.Context, in VoidInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, in.CompanyID, in.EntryID)
		if err != nil {
			return err
		}
		if original.SourceModule != "" && original.SourceModule != "MANUAL" {
			return fmt.Errorf("%w: entry %s was posted by %s",
				shared.ErrEntrySourceOwned, original.Number, original.SourceModule)
		}
		reversal, err = s.VoidEntryTx(ctx, tx, in.CompanyID, in.EntryID, in.ActorID, in.Reason)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, in.CompanyID, in.ActorID, "journal.void", in.EntryID, map[string]any{
		"reason":          in.Reason,
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	return reversal, nil
}

// VoidEntryTx voids inside the caller's transaction and returns the reversal.
func (s *Service) VoidEntryTx(ctx context.Context, tx TxRepository, companyID, entryID, actorID int64, reason string) (JournalEntry, error) {
	original, err := tx.GetEntryForUpdate(ctx, companyID, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.Status != EntryStatusPosted {
		return JournalEntry{}, shared.ErrInvalidStatus
	}
	memo := fmt.Sprintf("Reversal of %s", original.Number)
	if reason != "" {
		memo = fmt.Sprintf("%s: %s", memo, reason)
	}
	reversal, err := s.createAndPost(ctx, tx, CreateEntryInput{
		CompanyID:    companyID,
		Date:         original.Date,
		Reference:    original.Reference,
		Memo:         memo,
		Type:         original.Type,
		SourceModule: original.SourceModule + ":REVERSAL",
		SourceID:     uuid.New(),
		CreatedBy:    actorID,
		Lines:        mirrorLines(original.Lines),
	}, actorID, &original.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.MarkVoided(ctx, original.ID, actorID, s.now(), reversal.ID); err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

func (s *Service) ensureOpenPeriod(ctx context.Context, tx TxRepository, companyID int64, date time.Time) error {
	period, err := tx.FindPeriodByDate(ctx, companyID, date)
	if err != nil {
		return err
	}
	switch period.Status {
	case internalshared.PeriodStatusOpen:
		return nil
	case internalshared.PeriodStatusLocked:
		return shared.ErrPeriodLocked
	default:
		return shared.ErrPeriodClosed
	}
}

// lockEntryAccounts row-locks every account the entry touches and verifies
// company ownership and active state before any ledger write.
func (s *Service) lockEntryAccounts(ctx context.Context, tx TxRepository, entry JournalEntry) (map[int64]accounts.Account, error) {
	ids := make([]int64, 0, len(entry.Lines))
	seen := make(map[int64]struct{}, len(entry.Lines))
	for _, line := range entry.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	accts, err := tx.LockAccounts(ctx, entry.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		acct, ok := accts[id]
		if !ok {
			return nil, shared.ErrAccountNotFound
		}
		if !acct.IsActive {
			return nil, shared.ErrAccountInactive
		}
	}
	return accts, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "journal_entry",
		EntityID:  fmt.Sprintf("%d", entryID),
		Meta:      meta,
		At:        s.now(),
	})
}

func postingInputOf(entry JournalEntry) CreateEntryInput {
	in := CreateEntryInput{
		CompanyID: entry.CompanyID,
		Date:      entry.Date,
		Type:      entry.Type,
	}
	for _, line := range entry.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	return in
}

// resolveLines converts line inputs to stored lines, denormalizing account
// code and name. Every account must exist in the entry's company.
func resolveLines(ctx context.Context, tx TxRepository, companyID int64, in []LineInput) ([]JournalLine, error) {
	accts, err := tx.GetAccounts(ctx, companyID, accountIDsOf(in))
	if err != nil {
		return nil, err
	}
	lines := linesFromInput(in)
	for i := range lines {
		acct, ok := accts[lines[i].AccountID]
		if !ok {
			return nil, shared.ErrAccountNotFound
		}
		lines[i].AccountCode = acct.Code
		lines[i].AccountName = acct.Name
	}
	return lines, nil
}

func accountIDsOf(lines []LineInput) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}
