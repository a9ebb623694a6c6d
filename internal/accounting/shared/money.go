package shared

import "github.com/shopspring/decimal"

// MonetaryEpsilon is the uniform tolerance for monetary equality checks.
// Amounts are carried as decimals, but inputs may arrive rounded from
// float-based callers, so comparisons allow a one-cent drift.
var MonetaryEpsilon = decimal.New(1, -2)

// ApproxEqual reports whether two amounts agree within MonetaryEpsilon.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(MonetaryEpsilon)
}

// ApproxZero reports whether an amount is zero within MonetaryEpsilon.
func ApproxZero(a decimal.Decimal) bool {
	return a.Abs().LessThan(MonetaryEpsilon)
}

// Money2 rounds an amount to two decimal places, the resolution every
// persisted monetary column uses.
func Money2(a decimal.Decimal) decimal.Decimal {
	return a.Round(2)
}

// ParseMoney converts the text form of a numeric column into a decimal.
// Monetary values cross the driver boundary as text so no binary float
// representation ever touches them.
func ParseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
