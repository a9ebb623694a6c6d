package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide is the side on which an account type naturally increases.
type NormalSide string

const (
	NormalSideDebit  NormalSide = "DEBIT"
	NormalSideCredit NormalSide = "CREDIT"
)

// NormalSideFor derives the normal balance side from the account type.
// The type is the single source of truth; no separate column stores the side.
func NormalSideFor(t AccountType) NormalSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalSideDebit
	default:
		return NormalSideCredit
	}
}

// Role marks an account as the well-known target for automatic postings.
// Auto-entry builders resolve these with a typed lookup instead of matching
// on account names.
type Role string

const (
	RoleNone               Role = "NONE"
	RoleAccountsReceivable Role = "ACCOUNTS_RECEIVABLE"
	RoleAccountsPayable    Role = "ACCOUNTS_PAYABLE"
	RoleCash               Role = "CASH"
	RoleBank               Role = "BANK"
	RoleSalesRevenue       Role = "SALES_REVENUE"
	RoleInputTax           Role = "INPUT_TAX"
	RoleOutputTax          Role = "OUTPUT_TAX"
	RoleRetainedEarnings   Role = "RETAINED_EARNINGS"
)

// Account models a chart of accounts node scoped to a company.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	Subtype   string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalSide returns the side on which this account increases.
func (a Account) NormalSide() NormalSide {
	return NormalSideFor(a.Type)
}

// IsDebitNormal reports whether debits increase this account.
func (a Account) IsDebitNormal() bool {
	return a.NormalSide() == NormalSideDebit
}

// ValidType reports whether t is a known account type.
func ValidType(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	default:
		return false
	}
}
