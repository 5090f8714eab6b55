package vtoken_ledger

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivRounding(t *testing.T) {
	tests := []struct {
		name         string
		a, b, den    int64
		trunc, floor int64
	}{
		{"exact", 6, 4, 3, 8, 8},
		{"positive remainder", 7, 1, 2, 3, 3},
		{"negative remainder", -7, 1, 2, -3, -4},
		{"negative denominator", 7, 1, -2, -3, -4},
		{"both negative", -7, -1, 2, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(d(tt.a), d(tt.b), d(tt.den))
			require.NoError(t, err)
			assertDecimal(t, d(tt.trunc), got)

			got, err = MulDivRoundingDown(d(tt.a), d(tt.b), d(tt.den))
			require.NoError(t, err)
			assertDecimal(t, d(tt.floor), got)
		})
	}

	up, err := MulDivRoundingUp(d(7), d(1), d(2))
	require.NoError(t, err)
	assertDecimal(t, d(4), up)

	_, err = MulDiv(ONE, ONE, ZERO)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)
	_, err = MulDivRoundingUp(d(-1), ONE, ONE)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)
}

func TestMulDivChecksResultOnly(t *testing.T) {
	// the product overflows int256 but the quotient fits
	got, err := MulDiv(MaxInt256, d(4), d(8))
	require.NoError(t, err)
	assertDecimal(t, MaxInt256.Div(d(2)).Floor(), got)

	_, err = MulDiv(MaxInt256, d(2), ONE)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)

	_, err = SignedAdd(MaxInt256, ONE)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)
	_, err = SignedSub(MinInt256, ONE)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)
}

func TestMod256Sub(t *testing.T) {
	got := Mod256Sub(uint256.NewInt(1), uint256.NewInt(2))
	assert.Equal(t, new(uint256.Int).SetAllOne(), got)

	// wrapped growth still prices correctly
	growth := Mod256Sub(Uint256ToQ128(1), Mod256Sub(uint256.NewInt(0), Uint256ToQ128(2)))
	amount, err := MulDivUint256X128(growth, d(10))
	require.NoError(t, err)
	assertDecimal(t, d(30), amount)
}

func TestLiquidityAddDelta(t *testing.T) {
	got, err := LiquidityAddDelta(d(10), d(-4))
	require.NoError(t, err)
	assertDecimal(t, d(6), got)

	_, err = LiquidityAddDelta(d(3), d(-4))
	assert.ErrorIs(t, err, INVALID_LIQUIDITY)

	_, err = LiquidityAddDelta(MaxUint128, ONE)
	assert.ErrorIs(t, err, ARITHMETIC_OVERFLOW)
}
