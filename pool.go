package vtoken_ledger

import (
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PoolObserver is the read side of the underlying concentrated liquidity pool.
type PoolObserver interface {
	CurrentTick() int
	SqrtPriceX96() decimal.Decimal
	Liquidity() decimal.Decimal
	FeeGrowthGlobalX128() (*uint256.Int, *uint256.Int)
	FeeGrowthOutsideX128(tick int) (*uint256.Int, *uint256.Int)
	TickInitialized(tick int) bool
	ObserveTwapTick(window uint32) (int, error)
}

// SwapStep is one constant liquidity leg of a swap, amounts as seen by the
// pool (positive when the pool receives).
type SwapStep struct {
	Amount0           decimal.Decimal
	Amount1           decimal.Decimal
	Liquidity         decimal.Decimal
	SqrtPriceStartX96 decimal.Decimal
}

// SwapHook is notified by the pool while a swap executes.
type SwapHook interface {
	OnSwapStep(step SwapStep) error
	OnTickCross(tick int) error
}

type UniswapPool interface {
	PoolObserver
	// Swap follows the pool convention: positive amountSpecified is exact
	// input, negative exact output. A zero sqrtPriceLimitX96 means no limit.
	Swap(zeroForOne bool, amountSpecified decimal.Decimal, sqrtPriceLimitX96 decimal.Decimal, hook SwapHook) (decimal.Decimal, decimal.Decimal, error)
	ModifyLiquidity(tickLower, tickUpper int, liquidityDelta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
	Clone() UniswapPool
	// Restore copies the state of an earlier Clone back into the pool.
	Restore(snapshot UniswapPool) error
}

// Oracle reports the real price of the asset a vToken tracks, vBase per
// vToken in X128.
type Oracle interface {
	GetTwapPriceX128(window uint32) (decimal.Decimal, error)
}

type Clock interface {
	Now() uint64
}

type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is driven by the caller, for simulations and replays.
type ManualClock struct {
	ts atomic.Uint64
}

func NewManualClock(ts uint64) *ManualClock {
	c := &ManualClock{}
	c.ts.Store(ts)
	return c
}

func (c *ManualClock) Now() uint64 {
	return c.ts.Load()
}

func (c *ManualClock) Set(ts uint64) {
	c.ts.Store(ts)
}

func (c *ManualClock) Advance(seconds uint64) uint64 {
	return c.ts.Add(seconds)
}

// FixedOracle always answers with the same price.
type FixedOracle struct {
	PriceX128 decimal.Decimal
}

func (o *FixedOracle) GetTwapPriceX128(uint32) (decimal.Decimal, error) {
	return o.PriceX128, nil
}
