package ap

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
	"github.com/openbooks-erp/openbooks/internal/masterdata/suppliers"
	internalshared "github.com/openbooks-erp/openbooks/internal/shared"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memoryBillRepo struct {
	accounts  map[int64]accounts.Account
	suppliers map[int64]suppliers.Supplier
	bills     map[int64]Bill
	entries   map[int64]journals.JournalEntry
	lines     map[int64][]journals.JournalLine
	ledger    []ledger.Entry
	links     map[string]int64
	counters  map[string]int64
	nextID    int64
}

func newMemoryBillRepo() *memoryBillRepo {
	r := &memoryBillRepo{
		accounts:  make(map[int64]accounts.Account),
		suppliers: make(map[int64]suppliers.Supplier),
		bills:     make(map[int64]Bill),
		entries:   make(map[int64]journals.JournalEntry),
		lines:     make(map[int64][]journals.JournalLine),
		links:     make(map[string]int64),
		counters:  make(map[string]int64),
	}
	r.accounts[1] = accounts.Account{ID: 1, CompanyID: 1, Code: "2100", Name: "AP", Type: accounts.AccountTypeLiability, Role: accounts.RoleAccountsPayable, IsActive: true}
	r.accounts[2] = accounts.Account{ID: 2, CompanyID: 1, Code: "5000", Name: "Rent", Type: accounts.AccountTypeExpense, IsActive: true}
	r.accounts[3] = accounts.Account{ID: 3, CompanyID: 1, Code: "1300", Name: "Input tax", Type: accounts.AccountTypeAsset, Role: accounts.RoleInputTax, IsActive: true}
	r.suppliers[20] = suppliers.Supplier{ID: 20, CompanyID: 1, Name: "Supply Co", IsActive: true}
	return r
}

type supplierDirectory struct {
	repo *memoryBillRepo
}

func (d supplierDirectory) Get(ctx context.Context, companyID, supplierID int64) (suppliers.Supplier, error) {
	s, ok := d.repo.suppliers[supplierID]
	if !ok || s.CompanyID != companyID {
		return suppliers.Supplier{}, shared.ErrCounterpartyMissing
	}
	return s, nil
}

func (r *memoryBillRepo) List(ctx context.Context, companyID int64, limit, offset int) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryBillRepo) Get(ctx context.Context, companyID, billID int64) (Bill, error) {
	b, ok := r.bills[billID]
	if !ok {
		return Bill{}, shared.ErrDocumentNotFound
	}
	return b, nil
}

func (r *memoryBillRepo) ListOpenBySupplier(ctx context.Context, companyID, supplierID int64) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if b.SupplierID == supplierID && b.Open() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryBillRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryBillRepo) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	r.nextID++
	b.ID = r.nextID
	r.bills[b.ID] = b
	return b, nil
}

func (r *memoryBillRepo) GetBillForUpdate(ctx context.Context, companyID, billID int64) (Bill, error) {
	return r.Get(ctx, companyID, billID)
}

func (r *memoryBillRepo) MarkBillPosted(ctx context.Context, billID, journalEntryID int64, at time.Time) error {
	b, ok := r.bills[billID]
	if !ok {
		return shared.ErrDocumentNotFound
	}
	b.Status = BillStatusPosted
	b.JournalEntryID = &journalEntryID
	b.PostedAt = &at
	r.bills[billID] = b
	return nil
}

func (r *memoryBillRepo) MarkBillVoided(ctx context.Context, billID int64) error {
	b, ok := r.bills[billID]
	if !ok {
		return shared.ErrDocumentNotFound
	}
	b.Status = BillStatusVoid
	r.bills[billID] = b
	return nil
}

func (r *memoryBillRepo) AdjustSupplierBalance(ctx context.Context, companyID, supplierID int64, delta decimal.Decimal) error {
	s := r.suppliers[supplierID]
	s.CurrentBalance = s.CurrentBalance.Add(delta)
	r.suppliers[supplierID] = s
	return nil
}

func (r *memoryBillRepo) NextNumber(ctx context.Context, companyID int64, docType string) (string, error) {
	r.counters[docType]++
	return internalshared.FormatDocumentNumber(docType, r.counters[docType]), nil
}

func (r *memoryBillRepo) InsertEntry(ctx context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	r.nextID++
	e.ID = r.nextID
	r.entries[e.ID] = e
	return e, nil
}

func (r *memoryBillRepo) InsertLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
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

func (r *memoryBillRepo) ReplaceLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
	r.lines[entryID] = nil
	return r.InsertLines(ctx, entryID, lines)
}

func (r *memoryBillRepo) GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (journals.JournalEntry, error) {
	e, ok := r.entries[entryID]
	if !ok {
		return journals.JournalEntry{}, shared.ErrEntryNotFound
	}
	e.Lines = append([]journals.JournalLine(nil), r.lines[entryID]...)
	return e, nil
}

func (r *memoryBillRepo) MarkPosted(ctx context.Context, entryID, actorID int64, at time.Time, totalDebit, totalCredit decimal.Decimal) error {
	e, ok := r.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = journals.EntryStatusPosted
	e.TotalDebit = totalDebit
	e.TotalCredit = totalCredit
	r.entries[entryID] = e
	return nil
}

func (r *memoryBillRepo) MarkVoided(ctx context.Context, entryID, actorID int64, at time.Time, reversalID int64) error {
	e, ok := r.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = journals.EntryStatusVoid
	reversal := reversalID
	e.ReversedByID = &reversal
	r.entries[entryID] = e
	return nil
}

func (r *memoryBillRepo) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + ":" + ref.String()
	if _, ok := r.links[key]; ok {
		return shared.ErrSourceConflict
	}
	r.links[key] = entryID
	return nil
}

func (r *memoryBillRepo) FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (journals.PostingPeriod, error) {
	return journals.PostingPeriod{ID: 1, Status: internalshared.PeriodStatusOpen}, nil
}

func (r *memoryBillRepo) GetAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memoryBillRepo) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.Account, error) {
	return r.GetAccounts(ctx, companyID, ids)
}

func (r *memoryBillRepo) LatestBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, row := range r.ledger {
		if row.AccountID == accountID && !row.TransactionDate.After(asOf) {
			balance = row.RunningBalance
		}
	}
	return balance, nil
}

func (r *memoryBillRepo) InsertLedgerEntry(ctx context.Context, row ledger.Entry) error {
	r.nextID++
	row.ID = r.nextID
	r.ledger = append(r.ledger, row)
	return nil
}

type stubBuilder struct{}

func (stubBuilder) BuildBillEntry(ctx context.Context, b Bill, actorID int64) (journals.CreateEntryInput, error) {
	lines := []journals.LineInput{
		{AccountID: b.ExpenseAccountID, Debit: b.Subtotal},
	}
	if b.TaxAmount.IsPositive() {
		lines = append(lines, journals.LineInput{AccountID: 3, Debit: b.TaxAmount})
	}
	lines = append(lines, journals.LineInput{AccountID: 1, Credit: b.Total})
	return journals.CreateEntryInput{
		CompanyID:    b.CompanyID,
		Date:         b.BillDate,
		Type:         journals.EntryTypeAutoBill,
		SourceModule: "AP",
		SourceID:     b.SourceID,
		CreatedBy:    actorID,
		Lines:        lines,
	}, nil
}

func fixture() (*memoryBillRepo, *Service) {
	repo := newMemoryBillRepo()
	svc := NewService(repo, supplierDirectory{repo: repo}, journals.NewService(nil, nil), stubBuilder{}, nil)
	return repo, svc
}

func draftInput() CreateInput {
	return CreateInput{
		CompanyID:        1,
		SupplierID:       20,
		BillDate:         time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		DueDate:          time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
		ExpenseAccountID: 2,
		Subtotal:         money("300.00"),
		TaxAmount:        money("21.00"),
		CreatedBy:        5,
	}
}

func TestCreateBillDraft(t *testing.T) {
	ctx := context.Background()
	repo, svc := fixture()

	bill, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	require.Equal(t, "BILL-000001", bill.Number)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, "Supply Co", bill.SupplierName)
	require.True(t, bill.Total.Equal(money("321.00")))
	require.True(t, bill.BalanceDue.Equal(money("321.00")))

	require.Empty(t, repo.entries)
	require.True(t, repo.suppliers[20].CurrentBalance.IsZero())
}

func TestCreateBillUnknownSupplier(t *testing.T) {
	ctx := context.Background()
	_, svc := fixture()

	in := draftInput()
	in.SupplierID = 999
	_, err := svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrCounterpartyMissing)
}

func TestCreateBillRequiresExpenseAccount(t *testing.T) {
	ctx := context.Background()
	_, svc := fixture()

	in := draftInput()
	in.ExpenseAccountID = 0
	_, err := svc.Create(ctx, in)
	require.Error(t, err)
}

func TestPostBillRaisesSupplierBalance(t *testing.T) {
	ctx := context.Background()
	repo, svc := fixture()
	bill, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	posted, err := svc.Post(ctx, 1, bill.ID, 5)
	require.NoError(t, err)
	require.Equal(t, BillStatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)

	entry := repo.entries[*posted.JournalEntryID]
	require.Equal(t, journals.EntryStatusPosted, entry.Status)
	require.True(t, entry.TotalDebit.Equal(money("321.00")))
	require.True(t, entry.TotalCredit.Equal(money("321.00")))

	require.True(t, repo.suppliers[20].CurrentBalance.Equal(money("321.00")))
}

func TestPostBillTwiceRejected(t *testing.T) {
	ctx := context.Background()
	_, svc := fixture()
	bill, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Post(ctx, 1, bill.ID, 5)
	require.NoError(t, err)

	_, err = svc.Post(ctx, 1, bill.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestVoidBillReversesEntryAndBalance(t *testing.T) {
	ctx := context.Background()
	repo, svc := fixture()
	bill, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	posted, err := svc.Post(ctx, 1, bill.ID, 5)
	require.NoError(t, err)

	voided, err := svc.Void(ctx, 1, bill.ID, 5, "duplicate bill")
	require.NoError(t, err)
	require.Equal(t, BillStatusVoid, voided.Status)

	original := repo.entries[*posted.JournalEntryID]
	require.Equal(t, journals.EntryStatusVoid, original.Status)
	require.NotNil(t, original.ReversedByID)
	require.True(t, repo.suppliers[20].CurrentBalance.IsZero())
}

func TestVoidBillWithPaymentsRejected(t *testing.T) {
	ctx := context.Background()
	repo, svc := fixture()
	bill, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Post(ctx, 1, bill.ID, 5)
	require.NoError(t, err)

	partial := repo.bills[bill.ID]
	partial.AmountPaid = money("100.00")
	partial.BalanceDue = money("221.00")
	partial.Status = BillStatusPartial
	repo.bills[bill.ID] = partial

	_, err = svc.Void(ctx, 1, bill.ID, 5, "oops")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}
