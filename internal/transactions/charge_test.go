package transactions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateCharge(t *testing.T) {
	cases := []struct {
		name        string
		amountCents int
		wantFee     int
		wantTotal   int
	}{
		{name: "typical order", amountCents: 25836, wantFee: 779, wantTotal: 26615},
		{name: "small order", amountCents: 106, wantFee: 33, wantTotal: 139},
		{name: "zero amount", amountCents: 0, wantFee: 30, wantTotal: 30},
		{name: "rounds half up", amountCents: 1500, wantFee: 74, wantTotal: 1574},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			charge := CalculateCharge(tc.amountCents)
			require.Equal(t, tc.amountCents, charge.AmountCents)
			require.Equal(t, tc.wantFee, charge.FeeCents)
			require.Equal(t, tc.wantTotal, charge.TotalCents)
		})
	}
}

func TestChargeIsDeterministic(t *testing.T) {
	first := CalculateCharge(25836)
	second := CalculateCharge(25836)
	require.Equal(t, first, second)
}

func TestDisplayConversion(t *testing.T) {
	charge := CalculateCharge(25836)
	require.Equal(t, "258.36", charge.AmountDisplay().StringFixed(2))
	require.Equal(t, "7.79", charge.FeeDisplay().StringFixed(2))
	require.Equal(t, "266.15", charge.TotalDisplay().StringFixed(2))

	small := CalculateCharge(106)
	require.Equal(t, "1.06", small.AmountDisplay().StringFixed(2))
	require.Equal(t, "0.33", small.FeeDisplay().StringFixed(2))
	require.Equal(t, "1.39", small.TotalDisplay().StringFixed(2))
}
