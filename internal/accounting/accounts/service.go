package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// CreateInput captures fields for a new account.
type CreateInput struct {
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	Subtype   string
	Role      Role
}

// UpdateInput captures mutable account fields.
type UpdateInput struct {
	CompanyID int64
	ID        int64
	Name      string
	Type      AccountType
	Subtype   string
	Role      Role
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Account, error) {
	return s.repo.FindByID(ctx, companyID, id)
}

func (s *Service) FindByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return s.repo.FindByCode(ctx, companyID, code)
}

// FindByRole resolves a well-known account; a miss is a configuration error.
func (s *Service) FindByRole(ctx context.Context, companyID int64, role Role) (Account, error) {
	return s.repo.FindByRole(ctx, companyID, role)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if in.CompanyID == 0 {
		return Account{}, errors.New("accounts: company id required")
	}
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.Name) == "" {
		return Account{}, errors.New("accounts: code and name required")
	}
	if !ValidType(in.Type) {
		return Account{}, errors.New("accounts: unknown account type")
	}
	role := in.Role
	if role == "" {
		role = RoleNone
	}
	return s.repo.Insert(ctx, Account{
		CompanyID: in.CompanyID,
		Code:      strings.TrimSpace(in.Code),
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Subtype:   in.Subtype,
		Role:      role,
		IsActive:  true,
	})
}

// Update changes account attributes. The type is frozen once the account has
// ledger history, otherwise every stored running balance would change meaning.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Account, error) {
	current, err := s.repo.FindByID(ctx, in.CompanyID, in.ID)
	if err != nil {
		return Account{}, err
	}
	if !ValidType(in.Type) {
		return Account{}, errors.New("accounts: unknown account type")
	}
	if in.Type != current.Type {
		used, err := s.repo.HasLedgerEntries(ctx, in.CompanyID, in.ID)
		if err != nil {
			return Account{}, err
		}
		if used {
			return Account{}, shared.ErrAccountTypeImmutable
		}
	}
	role := in.Role
	if role == "" {
		role = current.Role
	}
	current.Name = in.Name
	current.Type = in.Type
	current.Subtype = in.Subtype
	current.Role = role
	return s.repo.Update(ctx, current)
}

// Deactivate retires an account. Accounts are never deleted.
func (s *Service) Deactivate(ctx context.Context, companyID, id int64) error {
	return s.repo.SetActive(ctx, companyID, id, false)
}

// Activate restores a deactivated account.
func (s *Service) Activate(ctx context.Context, companyID, id int64) error {
	return s.repo.SetActive(ctx, companyID, id, true)
}
