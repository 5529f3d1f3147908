package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamcredits/pkg/money"
)

func newPolicy(t *testing.T, base int64) *Policy {
	t.Helper()
	policy, err := NewPolicy(money.New(base, "usd"), nil)
	require.NoError(t, err)
	return policy
}

func TestUnitPriceTiers(t *testing.T) {
	policy := newPolicy(t, 100)

	cases := []struct {
		teamSize int
		discount int
		unit     int64
	}{
		{-3, 0, 100},
		{0, 0, 100},
		{4, 0, 100},
		{5, 20, 80},
		{14, 20, 80},
		{15, 25, 75},
		{16, 25, 75},
		{49, 25, 75},
		{50, 30, 70},
		{99, 30, 70},
		{100, 35, 65},
		{5000, 35, 65},
	}

	for _, tc := range cases {
		require.Equal(t, tc.discount, policy.Discount(tc.teamSize), "team size %d", tc.teamSize)
		require.Equal(t, tc.unit, policy.UnitPrice(tc.teamSize).Amount, "team size %d", tc.teamSize)
	}
}

func TestUnitPriceNeverZero(t *testing.T) {
	policy := newPolicy(t, 1)
	require.Equal(t, int64(1), policy.UnitPrice(1000).Amount)
}

func TestQuoteTotals(t *testing.T) {
	policy := newPolicy(t, 100)

	quote, err := policy.Quote(16, 10)
	require.NoError(t, err)
	require.Equal(t, 25, quote.DiscountPercent)
	require.Equal(t, int64(75), quote.UnitPrice.Amount)
	require.Equal(t, int64(750), quote.Total.Amount)
	require.Equal(t, "7.50", quote.Total.FormatMajor())
	require.Equal(t, "usd", quote.Total.Currency)
}

func TestQuoteRejectsOverflowAndNonPositive(t *testing.T) {
	policy := newPolicy(t, 100)

	_, err := policy.Quote(0, 1e17)
	require.ErrorIs(t, err, money.ErrOverflow)

	_, err = policy.Quote(0, math.MaxInt64/100+1)
	require.ErrorIs(t, err, money.ErrOverflow)

	quote, err := policy.Quote(0, math.MaxInt64/100)
	require.NoError(t, err)
	require.Positive(t, quote.Total.Amount)

	_, err = policy.Quote(0, 0)
	require.Error(t, err)
}

func TestNewPolicyValidation(t *testing.T) {
	_, err := NewPolicy(money.New(0, "usd"), nil)
	require.Error(t, err)

	_, err = NewPolicy(money.New(100, "usd"), []Tier{{MinTeamSize: 1, Percent: 100}})
	require.Error(t, err)
}

func TestCustomTiersOrderIndependent(t *testing.T) {
	policy, err := NewPolicy(money.New(1000, "usd"), []Tier{
		{MinTeamSize: 2, Percent: 10},
		{MinTeamSize: 10, Percent: 50},
	})
	require.NoError(t, err)

	require.Equal(t, 0, policy.Discount(1))
	require.Equal(t, 10, policy.Discount(9))
	require.Equal(t, 50, policy.Discount(10))
	require.Equal(t, int64(500), policy.UnitPrice(12).Amount)
}
