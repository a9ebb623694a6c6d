package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

const accountColumns = `id, company_id, code, name, type, subtype, role, is_active, created_at, updated_at`

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Account, error)
	FindByID(ctx context.Context, companyID, id int64) (Account, error)
	FindByCode(ctx context.Context, companyID int64, code string) (Account, error)
	FindByRole(ctx context.Context, companyID int64, role Role) (Account, error)
	Insert(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	SetActive(ctx context.Context, companyID, id int64, active bool) error
	HasLedgerEntries(ctx context.Context, companyID, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.Role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) FindByID(ctx context.Context, companyID, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) FindByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
}

// FindByRole resolves the well-known account for a role. Missing role accounts
// surface as a configuration error, not a plain not-found.
func (r *repository) FindByRole(ctx context.Context, companyID int64, role Role) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND role=$2 AND is_active ORDER BY id LIMIT 1`, companyID, role))
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return Account{}, shared.ErrRoleAccountMissing
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, subtype, role, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		a.CompanyID, a.Code, a.Name, a.Type, a.Subtype, a.Role, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET name=$3, type=$4, subtype=$5, role=$6, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING updated_at`,
		a.CompanyID, a.ID, a.Name, a.Type, a.Subtype, a.Role)
	if err := row.Scan(&a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) HasLedgerEntries(ctx context.Context, companyID, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE company_id=$1 AND account_id=$2)`, companyID, id).Scan(&exists)
	return exists, err
}
