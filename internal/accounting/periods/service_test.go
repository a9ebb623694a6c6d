package periods

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-erp/openbooks/internal/accounting/accounts"
	"github.com/openbooks-erp/openbooks/internal/accounting/journals"
	"github.com/openbooks-erp/openbooks/internal/accounting/ledger"
	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

type memoryPeriodRepo struct {
	accounts map[int64]accounts.Account
	periods  map[int64]Period
	entries  map[int64]journals.JournalEntry
	lines    map[int64][]journals.JournalLine
	ledger   []ledger.Entry
	links    map[string]int64
	counters map[string]int64
	nextID   int64
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{
		accounts: make(map[int64]accounts.Account),
		periods:  make(map[int64]Period),
		entries:  make(map[int64]journals.JournalEntry),
		lines:    make(map[int64][]journals.JournalLine),
		links:    make(map[string]int64),
		counters: make(map[string]int64),
	}
}

func (r *memoryPeriodRepo) addAccount(id int64, code string, t accounts.AccountType, role accounts.Role) {
	r.accounts[id] = accounts.Account{
		ID: id, CompanyID: 1, Code: code, Name: code, Type: t, Role: role, IsActive: true,
	}
}

func (r *memoryPeriodRepo) addPeriod(p Period) Period {
	r.nextID++
	p.ID = r.nextID
	r.periods[p.ID] = p
	return p
}

func (r *memoryPeriodRepo) addActivity(accountID int64, debit, credit decimal.Decimal) {
	r.ledger = append(r.ledger, ledger.Entry{
		CompanyID: 1, AccountID: accountID, Debit: debit, Credit: credit,
		TransactionDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})
}

func (r *memoryPeriodRepo) List(ctx context.Context, companyID int64) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryPeriodRepo) Get(ctx context.Context, companyID, periodID int64) (Period, error) {
	p, ok := r.periods[periodID]
	if !ok || p.CompanyID != companyID {
		return Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (r *memoryPeriodRepo) Create(ctx context.Context, p Period) (Period, error) {
	for _, existing := range r.periods {
		if existing.CompanyID != p.CompanyID {
			continue
		}
		if !existing.StartDate.After(p.EndDate) && !existing.EndDate.Before(p.StartDate) {
			return Period{}, shared.ErrPeriodOverlap
		}
	}
	return r.addPeriod(p), nil
}

func (r *memoryPeriodRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryPeriodRepo) LockPeriod(ctx context.Context, companyID, periodID int64) (Period, error) {
	return r.Get(ctx, companyID, periodID)
}

func (r *memoryPeriodRepo) UpdateStatus(ctx context.Context, periodID int64, status string, closedBy *int64, closedAt *time.Time, closingEntryID *int64) error {
	p, ok := r.periods[periodID]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	p.Status = status
	p.ClosedBy = closedBy
	p.ClosedAt = closedAt
	p.ClosingEntryID = closingEntryID
	r.periods[periodID] = p
	return nil
}

func (r *memoryPeriodRepo) AccountNets(ctx context.Context, companyID int64, start, end time.Time, types []accounts.AccountType) ([]AccountNet, error) {
	wanted := make(map[accounts.AccountType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	nets := make(map[int64]*AccountNet)
	var order []int64
	for _, row := range r.ledger {
		if row.CompanyID != companyID || row.TransactionDate.Before(start) || row.TransactionDate.After(end) {
			continue
		}
		acct := r.accounts[row.AccountID]
		if !wanted[acct.Type] {
			continue
		}
		n, ok := nets[row.AccountID]
		if !ok {
			n = &AccountNet{AccountID: row.AccountID, AccountName: acct.Name, AccountType: acct.Type}
			nets[row.AccountID] = n
			order = append(order, row.AccountID)
		}
		n.Net = n.Net.Add(row.Debit).Sub(row.Credit)
	}
	out := make([]AccountNet, 0, len(order))
	for _, id := range order {
		out = append(out, *nets[id])
	}
	return out, nil
}

func (r *memoryPeriodRepo) FindAccountByRole(ctx context.Context, companyID int64, role accounts.Role) (accounts.Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == companyID && a.Role == role {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrRoleAccountMissing
}

func (r *memoryPeriodRepo) NextNumber(ctx context.Context, companyID int64, docType string) (string, error) {
	r.counters[docType]++
	return internalshared.FormatDocumentNumber(docType, r.counters[docType]), nil
}

func (r *memoryPeriodRepo) InsertEntry(ctx context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = e
	return e, nil
}

func (r *memoryPeriodRepo) InsertLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
	stored := make([]journals.JournalLine, len(lines))
	for i, line := range lines {
		r.nextID++
		line.ID = r.nextID
		line.JournalID = entryID
		stored[i] = line
	}
	r.lines[entryID] = append(r.lines[entryID], stored...)
	return nil
}

func (r *memoryPeriodRepo) ReplaceLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
	r.lines[entryID] = nil
	return r.InsertLines(ctx, entryID, lines)
}

func (r *memoryPeriodRepo) GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (journals.JournalEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return journals.JournalEntry{}, shared.ErrEntryNotFound
	}
	e.Lines = append([]journals.JournalLine(nil), r.lines[entryID]...)
	return e, nil
}

func (r *memoryPeriodRepo) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time, totalDebit, totalCredit decimal.Decimal) error {
	e, ok := r.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = journals.EntryStatusPosted
	e.PostedBy = &actorID
	e.PostedAt = &at
	e.TotalDebit = totalDebit
	e.TotalCredit = totalCredit
	r.entries[entryID] = e
	return nil
}

func (r *memoryPeriodRepo) MarkVoided(ctx context.Context, entryID, actorID int64, at time.Time, reversalID int64) error {
	e, ok := r.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = journals.EntryStatusVoid
	e.VoidedBy = &actorID
	e.VoidedAt = &at
	e.ReversedByID = &reversalID
	r.entries[entryID] = e
	return nil
}

func (r *memoryPeriodRepo) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + ":" + ref.String()
	if _, ok := r.links[key]; ok {
		return shared.ErrSourceConflict
	}
	r.links[key] = entryID
	return nil
}

func (r *memoryPeriodRepo) FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (journals.PostingPeriod, error) {
	for _, p := range r.periods {
		if p.CompanyID != companyID {
			continue
		}
		if !date.Before(p.StartDate) && !date.After(p.EndDate) {
			return journals.PostingPeriod{ID: p.ID, Status: p.Status, StartDate: p.StartDate, EndDate: p.EndDate}, nil
		}
	}
	return journals.PostingPeriod{}, shared.ErrNoPeriodForDate
}

func (r *memoryPeriodRepo) fetch(companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok && a.CompanyID == companyID {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memoryPeriodRepo) GetAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	return r.fetch(companyID, ids)
}

func (r *memoryPeriodRepo) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	return r.fetch(companyID, ids)
}

func (r *memoryPeriodRepo) LatestBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, row := range r.ledger {
		if row.CompanyID != companyID || row.AccountID != accountID || row.TransactionDate.After(asOf) {
			continue
		}
		balance = row.RunningBalance
	}
	return balance, nil
}

func (r *memoryPeriodRepo) InsertLedgerEntry(ctx context.Context, row ledger.Entry) error {
	r.nextID++
	row.ID = r.nextID
	r.ledger = append(r.ledger, row)
	return nil
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fixture(t *testing.T) (*memoryPeriodRepo, *Service, Period) {
	t.Helper()
	repo := newMemoryPeriodRepo()
	repo.addAccount(1, "3900", accounts.AccountTypeEquity, accounts.RoleRetainedEarnings)
	repo.addAccount(2, "4000", accounts.AccountTypeRevenue, accounts.RoleNone)
	repo.addAccount(3, "5000", accounts.AccountTypeExpense, accounts.RoleNone)
	period := repo.addPeriod(Period{
		CompanyID:  1,
		Name:       "January 2026",
		PeriodType: PeriodTypeMonthly,
		FiscalYear: 2026,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:     internalshared.PeriodStatusOpen,
	})
	journalSvc := journals.NewService(nil, nil)
	svc := NewService(repo, journalSvc, nil)
	return repo, svc, period
}

func TestClosePeriodSweepsNetIncome(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)
	repo.addActivity(2, decimal.Zero, money("500.00"))
	repo.addActivity(3, money("200.00"), decimal.Zero)

	summary, err := svc.Close(ctx, 1, period.ID, 9, "month end")
	require.NoError(t, err)
	require.True(t, summary.TotalRevenue.Equal(money("500.00")))
	require.True(t, summary.TotalExpenses.Equal(money("200.00")))
	require.True(t, summary.NetIncome.Equal(money("300.00")))
	require.Equal(t, 2, summary.AccountsClosed)
	require.NotNil(t, summary.ClosingEntryID)

	closed := repo.periods[period.ID]
	require.Equal(t, internalshared.PeriodStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	require.Equal(t, int64(9), *closed.ClosedBy)

	entry, err := repo.GetEntryForUpdate(ctx, 1, *summary.ClosingEntryID)
	require.NoError(t, err)
	require.Equal(t, journals.EntryStatusPosted, entry.Status)
	require.Equal(t, journals.EntryTypeClosing, entry.Type)
	require.Len(t, entry.Lines, 3)
	// Revenue zeroes with a debit, expense with a credit, and the remainder
	// lands in retained earnings as a credit.
	require.True(t, entry.Lines[0].Debit.Equal(money("500.00")))
	require.True(t, entry.Lines[1].Credit.Equal(money("200.00")))
	require.Equal(t, int64(1), entry.Lines[2].AccountID)
	require.True(t, entry.Lines[2].Credit.Equal(money("300.00")))
}

func TestClosePeriodNetLossDebitsRetainedEarnings(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)
	repo.addActivity(2, decimal.Zero, money("100.00"))
	repo.addActivity(3, money("250.00"), decimal.Zero)

	summary, err := svc.Close(ctx, 1, period.ID, 9, "")
	require.NoError(t, err)
	require.True(t, summary.NetIncome.Equal(money("-150.00")))

	entry, err := repo.GetEntryForUpdate(ctx, 1, *summary.ClosingEntryID)
	require.NoError(t, err)
	last := entry.Lines[len(entry.Lines)-1]
	require.Equal(t, int64(1), last.AccountID)
	require.True(t, last.Debit.Equal(money("150.00")))
}

func TestClosePeriodWithoutActivitySkipsClosingEntry(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)

	summary, err := svc.Close(ctx, 1, period.ID, 9, "")
	require.NoError(t, err)
	require.Nil(t, summary.ClosingEntryID)
	require.Zero(t, summary.AccountsClosed)
	require.Equal(t, internalshared.PeriodStatusClosed, repo.periods[period.ID].Status)
	require.Empty(t, repo.entries)
}

func TestClosePeriodMissingRetainedEarnings(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)
	delete(repo.accounts, 1)
	repo.addActivity(2, decimal.Zero, money("500.00"))

	_, err := svc.Close(ctx, 1, period.ID, 9, "")
	require.ErrorIs(t, err, shared.ErrRoleAccountMissing)
}

func TestCloseAlreadyClosedPeriod(t *testing.T) {
	ctx := context.Background()
	_, svc, period := fixture(t)

	_, err := svc.Close(ctx, 1, period.ID, 9, "")
	require.NoError(t, err)
	_, err = svc.Close(ctx, 1, period.ID, 9, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReopenVoidsClosingEntry(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)
	repo.addActivity(2, decimal.Zero, money("500.00"))

	summary, err := svc.Close(ctx, 1, period.ID, 9, "")
	require.NoError(t, err)
	require.NotNil(t, summary.ClosingEntryID)
	closingID := *summary.ClosingEntryID

	reopened, err := svc.Reopen(ctx, 1, period.ID, 9, "correction")
	require.NoError(t, err)
	require.Equal(t, internalshared.PeriodStatusOpen, reopened.Status)
	require.Nil(t, reopened.ClosingEntryID)

	closing, err := repo.GetEntryForUpdate(ctx, 1, closingID)
	require.NoError(t, err)
	require.Equal(t, journals.EntryStatusVoid, closing.Status)
	require.NotNil(t, closing.ReversedByID)
}

func TestReopenOpenPeriodRejected(t *testing.T) {
	ctx := context.Background()
	_, svc, period := fixture(t)

	_, err := svc.Reopen(ctx, 1, period.ID, 9, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, svc, period := fixture(t)

	_, err := svc.Lock(ctx, 1, period.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.Close(ctx, 1, period.ID, 9, "")
	require.NoError(t, err)

	locked, err := svc.Lock(ctx, 1, period.ID, 9)
	require.NoError(t, err)
	require.Equal(t, internalshared.PeriodStatusLocked, locked.Status)

	_, err = svc.Reopen(ctx, 1, period.ID, 9, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Equal(t, internalshared.PeriodStatusLocked, repo.periods[period.ID].Status)
}

func TestCreatePeriodRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := fixture(t)

	_, err := svc.Create(ctx, CreateInput{
		CompanyID:  1,
		Name:       "Mid January",
		PeriodType: PeriodTypeMonthly,
		FiscalYear: 2026,
		StartDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrPeriodOverlap)

	created, err := svc.Create(ctx, CreateInput{
		CompanyID:  1,
		Name:       "February 2026",
		PeriodType: PeriodTypeMonthly,
		FiscalYear: 2026,
		StartDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, internalshared.PeriodStatusOpen, created.Status)
}
