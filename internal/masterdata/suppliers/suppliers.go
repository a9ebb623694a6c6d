package suppliers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// Supplier is a party the company buys from. CurrentBalance tracks open
// payables.
type Supplier struct {
	ID             int64
	CompanyID      int64
	Name           string
	Email          string
	Phone          string
	TaxID          string
	CurrentBalance decimal.Decimal
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, company_id, name, email, phone, tax_id, current_balance::text, is_active, created_at, updated_at`

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	var balance string
	err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &s.Email, &s.Phone, &s.TaxID, &balance, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrCounterpartyMissing
		}
		return Supplier{}, err
	}
	if s.CurrentBalance, err = shared.ParseMoney(balance); err != nil {
		return Supplier{}, err
	}
	return s, nil
}

func (r *Repository) List(ctx context.Context, companyID int64) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM suppliers WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var suppliers []Supplier
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *Repository) Get(ctx context.Context, companyID, supplierID int64) (Supplier, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE company_id=$1 AND id=$2`, companyID, supplierID))
}

func (r *Repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (company_id, name, email, phone, tax_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING id, created_at, updated_at`,
		s.CompanyID, s.Name, s.Email, s.Phone, s.TaxID).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Supplier{}, err
	}
	s.IsActive = true
	return s, nil
}

// GetForUpdateTx row-locks the supplier inside the caller's transaction.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, supplierID int64) (Supplier, error) {
	return scan(tx.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, supplierID))
}

// AdjustBalanceTx shifts the supplier's open balance by delta inside the
// caller's transaction. Positive delta raises the payable.
func AdjustBalanceTx(ctx context.Context, tx pgx.Tx, companyID, supplierID int64, delta decimal.Decimal) error {
	cmd, err := tx.Exec(ctx, `UPDATE suppliers SET current_balance = current_balance + $3, updated_at=NOW()
WHERE company_id=$1 AND id=$2`, companyID, supplierID, delta.StringFixed(2))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCounterpartyMissing
	}
	return nil
}
