package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestApproxEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"10.00", "10.00", true},
		{"10.00", "10.005", true},
		{"10.00", "10.01", false},
		{"10.00", "9.995", true},
		{"0.00", "0.01", false},
	}
	for _, tc := range cases {
		a := decimal.RequireFromString(tc.a)
		b := decimal.RequireFromString(tc.b)
		require.Equal(t, tc.want, ApproxEqual(a, b), "%s vs %s", tc.a, tc.b)
	}
}

func TestApproxZero(t *testing.T) {
	require.True(t, ApproxZero(decimal.Zero))
	require.True(t, ApproxZero(decimal.RequireFromString("0.004")))
	require.True(t, ApproxZero(decimal.RequireFromString("-0.009")))
	require.False(t, ApproxZero(decimal.RequireFromString("0.01")))
}

func TestMoney2Rounds(t *testing.T) {
	require.Equal(t, "10.46", Money2(decimal.RequireFromString("10.455")).StringFixed(2))
	require.Equal(t, "10.45", Money2(decimal.RequireFromString("10.454")).StringFixed(2))
}

func TestParseMoney(t *testing.T) {
	v, err := ParseMoney("123.45")
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.RequireFromString("123.45")))

	v, err = ParseMoney("")
	require.NoError(t, err)
	require.True(t, v.IsZero())

	_, err = ParseMoney("not-a-number")
	require.Error(t, err)
}
