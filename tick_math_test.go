package vtoken_ledger

import (
	"math/big"
	"testing"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTick(t *testing.T) {
	_, err := GetSqrtRatioAtTick(MIN_TICK - 1)
	assert.ErrorIs(t, err, INVALID_TICK, "tick too small")

	_, err = GetSqrtRatioAtTick(MAX_TICK + 1)
	assert.ErrorIs(t, err, INVALID_TICK, "tick too large")

	rmin, _ := GetSqrtRatioAtTick(MIN_TICK)
	assertDecimal(t, MIN_SQRT_RATIO, rmin, "min tick")

	r0, _ := GetSqrtRatioAtTick(0)
	assertDecimal(t, decimal.NewFromBigInt(new(big.Int).Lsh(constants.One, 96), 0), r0)

	rmax, _ := GetSqrtRatioAtTick(MAX_TICK)
	assertDecimal(t, MAX_SQRT_RATIO, rmax, "max tick")
}

func TestGetTickAtSqrtRatio(t *testing.T) {
	tmin, _ := GetTickAtSqrtRatio(MIN_SQRT_RATIO)
	assert.Equal(t, MIN_TICK, tmin, "returns the correct value for sqrt ratio at min tick")

	tmax, _ := GetTickAtSqrtRatio(MAX_SQRT_RATIO.Sub(ONE))
	assert.Equal(t, MAX_TICK-1, tmax, "returns the correct value for sqrt ratio at max tick")

	_, err := GetTickAtSqrtRatio(MAX_SQRT_RATIO)
	assert.ErrorIs(t, err, INVALID_TICK)
}

func TestSqrtPriceX96ToPriceX128(t *testing.T) {
	// tick 0 is price 1 whichever side vToken is on
	for _, isToken0 := range []bool{true, false} {
		p, err := TickToPriceX128(0, isToken0)
		require.NoError(t, err)
		assertDecimal(t, Q128, p)
	}

	// sqrt price 2 means token1 per token0 is 4
	sqrtP := Q96.Mul(d(2))
	p, err := SqrtPriceX96ToPriceX128(sqrtP, true)
	require.NoError(t, err)
	assertDecimal(t, dq(4), p)

	p, err = SqrtPriceX96ToPriceX128(sqrtP, false)
	require.NoError(t, err)
	assertDecimal(t, Q128.Div(d(4)), p)

	_, err = SqrtPriceX96ToPriceX128(ZERO, true)
	assert.ErrorIs(t, err, INVALID_TICK)
}

func TestPriceX128ToSqrtPriceX96(t *testing.T) {
	tests := []struct {
		name      string
		priceX128 decimal.Decimal
		isToken0  bool
		want      decimal.Decimal
	}{
		{"par token0", Q128, true, Q96},
		{"par token1", Q128, false, Q96},
		{"four token0", dq(4), true, Q96.Mul(d(2))},
		{"four token1", dq(4), false, Q96.Div(d(2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PriceX128ToSqrtPriceX96(tt.priceX128, tt.isToken0)
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}
	_, err := PriceX128ToSqrtPriceX96(ZERO, true)
	assert.ErrorIs(t, err, INVALID_AMOUNT)
}

func TestTickSpacingToMaxLiquidityPerTick(t *testing.T) {
	// values from the core pool tests
	want, _ := decimal.NewFromString("1917569901783203986719870431555990")
	assertDecimal(t, want, TickSpacingToMaxLiquidityPerTick(10))
	want, _ = decimal.NewFromString("11505743598341114571880798222544994")
	assertDecimal(t, want, TickSpacingToMaxLiquidityPerTick(60))
}
