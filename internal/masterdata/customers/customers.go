package customers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks-erp/openbooks/internal/accounting/shared"
)

// Customer is a party the company invoices. CurrentBalance tracks open
// receivables and moves with invoice posting and payment allocation.
type Customer struct {
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

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	var balance string
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.TaxID, &balance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrCounterpartyMissing
		}
		return Customer{}, err
	}
	if c.CurrentBalance, err = shared.ParseMoney(balance); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, companyID int64) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM customers WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *Repository) Get(ctx context.Context, companyID, customerID int64) (Customer, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE company_id=$1 AND id=$2`, companyID, customerID))
}

func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (company_id, name, email, phone, tax_id, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING id, created_at, updated_at`,
		c.CompanyID, c.Name, c.Email, c.Phone, c.TaxID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	c.IsActive = true
	return c, nil
}

// GetForUpdateTx row-locks the customer inside the caller's transaction.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, customerID int64) (Customer, error) {
	return scan(tx.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, customerID))
}

// AdjustBalanceTx shifts the customer's open balance by delta inside the
// caller's transaction. Positive delta raises the receivable.
func AdjustBalanceTx(ctx context.Context, tx pgx.Tx, companyID, customerID int64, delta decimal.Decimal) error {
	cmd, err := tx.Exec(ctx, `UPDATE customers SET current_balance = current_balance + $3, updated_at=NOW()
WHERE company_id=$1 AND id=$2`, companyID, customerID, delta.StringFixed(2))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCounterpartyMissing
	}
	return nil
}
