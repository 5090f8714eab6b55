package vtoken_ledger

import (
	"math/big"
	"testing"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSwapStep(t *testing.T) {
	price := utils.EncodeSqrtRatioX96(big.NewInt(1), big.NewInt(1))
	priceTarget := utils.EncodeSqrtRatioX96(big.NewInt(101), big.NewInt(100))
	liquidity := new(big.Int).Mul(big.NewInt(2), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	_, amountIn, amountOut, feeAmount, err := utils.ComputeSwapStep(price, priceTarget, liquidity, amount, constants.FeeAmount(600))
	require.NoError(t, err)
	assert.Equal(t, "9975124224178055", amountIn.String())
	assert.Equal(t, "5988667735148", feeAmount.String())
	assert.Equal(t, "9925619580021728", amountOut.String())
	assert.Equal(t, -1, new(big.Int).Add(amountIn, amountOut).Cmp(amount))
}

var e18 = decimal.New(1, 18)

func newTestSimPool(t *testing.T) (*SimPool, *ManualClock) {
	t.Helper()
	clock := NewManualClock(1000)
	pool, err := NewSimPool(testVBase, testVToken, 500, 10, Q96, clock)
	require.NoError(t, err)
	return pool, clock
}

func TestNewSimPool(t *testing.T) {
	pool, _ := newTestSimPool(t)
	assert.Equal(t, testVToken, pool.Token0)
	assert.Equal(t, testVBase, pool.Token1)
	assert.Equal(t, 0, pool.CurrentTick())
	assert.True(t, pool.Liquidity().IsZero())
	assert.Error(t, pool.Initialize(Q96))

	_, err := NewSimPool(testVToken, testVBase, 500, 0, Q96, nil)
	assert.ErrorIs(t, err, INVALID_TICK)
}

func TestSimPoolModifyLiquidity(t *testing.T) {
	pool, _ := newTestSimPool(t)

	amount0, amount1, err := pool.ModifyLiquidity(-100, 100, e18)
	require.NoError(t, err)
	assert.True(t, amount0.IsPositive())
	assert.True(t, amount1.IsPositive())
	assert.True(t, amount0.Sub(amount1).Abs().LessThanOrEqual(d(2)), "%s vs %s", amount0, amount1)
	assertDecimal(t, e18, pool.Liquidity())
	assert.True(t, pool.TickInitialized(-100))
	assert.True(t, pool.TickInitialized(100))

	// out of range liquidity is single sided and inactive
	above0, above1, err := pool.ModifyLiquidity(100, 200, e18)
	require.NoError(t, err)
	assert.True(t, above0.IsPositive())
	assert.True(t, above1.IsZero())
	assertDecimal(t, e18, pool.Liquidity())

	out0, out1, err := pool.ModifyLiquidity(-100, 100, e18.Neg())
	require.NoError(t, err)
	assert.True(t, out0.Neg().LessThanOrEqual(amount0))
	assert.True(t, out1.Neg().LessThanOrEqual(amount1))
	assert.True(t, pool.Liquidity().IsZero())
	assert.False(t, pool.TickInitialized(-100))
	assert.True(t, pool.TickInitialized(100))

	_, _, err = pool.ModifyLiquidity(-105, 100, e18)
	assert.ErrorIs(t, err, INVALID_TICK)
	_, _, err = pool.ModifyLiquidity(100, -100, e18)
	assert.ErrorIs(t, err, INVALID_TICK)
}

func TestSimPoolSwapCrossesTicks(t *testing.T) {
	pool, _ := newTestSimPool(t)
	_, _, err := pool.ModifyLiquidity(-100, 100, e18)
	require.NoError(t, err)
	_, _, err = pool.ModifyLiquidity(-200, 200, e18)
	require.NoError(t, err)
	assertDecimal(t, e18.Mul(d(2)), pool.Liquidity())

	limit, err := GetSqrtRatioAtTick(-150)
	require.NoError(t, err)
	hook := &recordingHook{}
	amount0, amount1, err := pool.Swap(true, e18, limit, hook)
	require.NoError(t, err)

	assert.Equal(t, []int{-100}, hook.crosses)
	assert.Equal(t, -150, pool.CurrentTick())
	assertDecimal(t, limit, pool.SqrtPriceX96())
	assertDecimal(t, e18, pool.Liquidity())
	assert.True(t, amount0.IsPositive())
	assert.True(t, amount0.LessThan(e18), "stopped at the limit")
	assert.True(t, amount1.IsNegative())

	require.Len(t, hook.steps, 2)
	assertDecimal(t, e18.Mul(d(2)), hook.steps[0].Liquidity)
	assertDecimal(t, Q96, hook.steps[0].SqrtPriceStartX96)
	sum0, sum1 := ZERO, ZERO
	for _, s := range hook.steps {
		sum0 = sum0.Add(s.Amount0)
		sum1 = sum1.Add(s.Amount1)
	}
	assertDecimal(t, amount0, sum0)
	assertDecimal(t, amount1, sum1)

	global0, _ := pool.FeeGrowthGlobalX128()
	assert.False(t, global0.IsZero())
	outside0, _ := pool.FeeGrowthOutsideX128(-100)
	assert.False(t, outside0.IsZero())
}

func TestSimPoolSwapExactOutput(t *testing.T) {
	pool, _ := newTestSimPool(t)
	_, _, err := pool.ModifyLiquidity(-1000, 1000, e18)
	require.NoError(t, err)

	want := decimal.New(1, 15)
	amount0, amount1, err := pool.Swap(false, want.Neg(), ZERO, nil)
	require.NoError(t, err)
	assertDecimal(t, want.Neg(), amount0)
	// price and fee are both against the buyer
	assert.True(t, amount1.GreaterThan(want))
	assert.True(t, pool.CurrentTick() >= 0)
}

func TestSimPoolSwapErrors(t *testing.T) {
	pool, _ := newTestSimPool(t)
	_, _, err := pool.Swap(true, ZERO, ZERO, nil)
	assert.ErrorIs(t, err, INVALID_AMOUNT)

	above, err := GetSqrtRatioAtTick(10)
	require.NoError(t, err)
	_, _, err = pool.Swap(true, e18, above, nil)
	assert.ErrorIs(t, err, PRICE_LIMIT)
	_, _, err = pool.Swap(false, e18, MAX_SQRT_RATIO, nil)
	assert.ErrorIs(t, err, PRICE_LIMIT)
}

func TestSimPoolTwap(t *testing.T) {
	pool, clock := newTestSimPool(t)
	_, _, err := pool.ModifyLiquidity(-200, 200, e18)
	require.NoError(t, err)
	limit, err := GetSqrtRatioAtTick(-150)
	require.NoError(t, err)

	clock.Set(1060)
	_, _, err = pool.Swap(true, e18, limit, nil)
	require.NoError(t, err)
	require.Equal(t, -150, pool.CurrentTick())

	clock.Set(1120)
	tests := []struct {
		window uint32
		want   int
	}{
		{0, -150},
		{60, -150},
		{120, -75},
		{1000, -75},
	}
	for _, tt := range tests {
		tick, err := pool.ObserveTwapTick(tt.window)
		require.NoError(t, err)
		assert.Equal(t, tt.want, tick, "window %d", tt.window)
	}

	// 30 seconds at tick 0 and 60 at -150
	tick, err := pool.ObserveTwapTick(90)
	require.NoError(t, err)
	assert.Equal(t, -100, tick)

	// -9150 / 91 rounds toward negative infinity
	clock.Set(1121)
	tick, err = pool.ObserveTwapTick(91)
	require.NoError(t, err)
	assert.Equal(t, -101, tick)
}

func TestSimPoolCloneAndSnapshot(t *testing.T) {
	pool, clock := newTestSimPool(t)
	_, _, err := pool.ModifyLiquidity(-200, 200, e18)
	require.NoError(t, err)

	clone := pool.Clone().(*SimPool)
	_, _, err = clone.Swap(true, decimal.New(1, 15), ZERO, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, pool.CurrentTick())
	assertDecimal(t, Q96, pool.SqrtPriceX96())
	global0, _ := pool.FeeGrowthGlobalX128()
	assert.True(t, global0.IsZero())

	value, err := clone.Value()
	require.NoError(t, err)
	restored := &SimPool{}
	require.NoError(t, restored.Scan(value))
	restored.SetClock(clock)
	assert.Equal(t, clone.CurrentTick(), restored.CurrentTick())
	assertDecimal(t, clone.SqrtPriceX96(), restored.SqrtPriceX96())
	assertDecimal(t, clone.Liquidity(), restored.Liquidity())
	assert.True(t, restored.TickInitialized(-200))
	assert.True(t, restored.TickInitialized(200))
	restoredGlobal0, _ := restored.FeeGrowthGlobalX128()
	cloneGlobal0, _ := clone.FeeGrowthGlobalX128()
	assert.Equal(t, cloneGlobal0.String(), restoredGlobal0.String())
}
