package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

type memoryAccountRepo struct {
	accounts map[int64]Account
	used     map[int64]bool
	nextID   int64
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{
		accounts: make(map[int64]Account),
		used:     make(map[int64]bool),
	}
}

func (r *memoryAccountRepo) List(ctx context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAccountRepo) FindByID(ctx context.Context, companyID, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok || a.CompanyID != companyID {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryAccountRepo) FindByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *memoryAccountRepo) FindByRole(ctx context.Context, companyID int64, role Role) (Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == companyID && a.Role == role {
			return a, nil
		}
	}
	return Account{}, shared.ErrRoleAccountMissing
}

func (r *memoryAccountRepo) Insert(ctx context.Context, a Account) (Account, error) {
	r.nextID++
	a.ID = r.nextID
	r.accounts[a.ID] = a
	return a, nil
}

func (r *memoryAccountRepo) Update(ctx context.Context, a Account) (Account, error) {
	r.accounts[a.ID] = a
	return a, nil
}

func (r *memoryAccountRepo) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryAccountRepo) HasLedgerEntries(ctx context.Context, companyID, id int64) (bool, error) {
	return r.used[id], nil
}

func TestNormalSideFor(t *testing.T) {
	cases := []struct {
		accountType AccountType
		want        NormalSide
	}{
		{AccountTypeAsset, NormalSideDebit},
		{AccountTypeExpense, NormalSideDebit},
		{AccountTypeLiability, NormalSideCredit},
		{AccountTypeEquity, NormalSideCredit},
		{AccountTypeRevenue, NormalSideCredit},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalSideFor(tc.accountType), "type %s", tc.accountType)
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryAccountRepo())

	a, err := svc.Create(ctx, CreateInput{
		CompanyID: 1,
		Code:      " 1010 ",
		Name:      "Cash",
		Type:      AccountTypeAsset,
	})
	require.NoError(t, err)
	require.Equal(t, "1010", a.Code)
	require.Equal(t, RoleNone, a.Role)
	require.True(t, a.IsActive)
	require.True(t, a.IsDebitNormal())
}

func TestCreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryAccountRepo())

	_, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "", Name: "Cash", Type: AccountTypeAsset})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1010", Name: "Cash", Type: "BOGUS"})
	require.Error(t, err)
}

func TestUpdateAccountTypeFrozenWithHistory(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	repo.used[a.ID] = true

	_, err = svc.Update(ctx, UpdateInput{CompanyID: 1, ID: a.ID, Name: "Cash", Type: AccountTypeExpense})
	require.ErrorIs(t, err, shared.ErrAccountTypeImmutable)
}

func TestUpdateAccountTypeAllowedWithoutHistory(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1010", Name: "Misc", Type: AccountTypeAsset})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdateInput{CompanyID: 1, ID: a.ID, Name: "Misc expense", Type: AccountTypeExpense})
	require.NoError(t, err)
	require.Equal(t, AccountTypeExpense, updated.Type)
	require.Equal(t, "Misc expense", updated.Name)
}

func TestDeactivateAndActivate(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, CreateInput{CompanyID: 1, Code: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, 1, a.ID))
	require.False(t, repo.accounts[a.ID].IsActive)

	require.NoError(t, svc.Activate(ctx, 1, a.ID))
	require.True(t, repo.accounts[a.ID].IsActive)
}

func TestFindByRoleMissing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryAccountRepo())

	_, err := svc.FindByRole(ctx, 1, RoleRetainedEarnings)
	require.ErrorIs(t, err, shared.ErrRoleAccountMissing)
}
