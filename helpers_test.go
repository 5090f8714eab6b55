package vtoken_ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	testVToken = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testVBase  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testOwner  = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func dq(v int64) decimal.Decimal {
	return ToQ128(v)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

// fakePool quotes every swap at a fixed price and takes liquidity at
// (L, price*L). vToken is token0.
type fakePool struct {
	tick         int
	twapTick     int
	sqrtPriceX96 decimal.Decimal
	liquidity    decimal.Decimal
	price        decimal.Decimal
	gross        map[int]decimal.Decimal
	crosses      []int
	tickAfter    *int
	swapErr      error
}

func newFakePool(price int64, tick int) *fakePool {
	sqrtPriceX96, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		panic(err)
	}
	return &fakePool{
		tick:         tick,
		twapTick:     tick,
		sqrtPriceX96: sqrtPriceX96,
		liquidity:    ZERO,
		price:        d(price),
		gross:        map[int]decimal.Decimal{},
	}
}

// scheduleCrosses makes the next swap report crossings and end at tickAfter.
func (p *fakePool) scheduleCrosses(tickAfter int, ticks ...int) {
	p.crosses = ticks
	p.tickAfter = &tickAfter
}

func (p *fakePool) CurrentTick() int { return p.tick }
func (p *fakePool) SqrtPriceX96() decimal.Decimal { return p.sqrtPriceX96 }
func (p *fakePool) Liquidity() decimal.Decimal { return p.liquidity }
func (p *fakePool) TickInitialized(tick int) bool { return p.gross[tick].IsPositive() }
func (p *fakePool) ObserveTwapTick(uint32) (int, error) { return p.twapTick, nil }

func (p *fakePool) FeeGrowthGlobalX128() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int), new(uint256.Int)
}

func (p *fakePool) FeeGrowthOutsideX128(int) (*uint256.Int, *uint256.Int) {
	return new(uint256.Int), new(uint256.Int)
}

func (p *fakePool) Swap(zeroForOne bool, amountSpecified decimal.Decimal, _ decimal.Decimal, hook SwapHook) (decimal.Decimal, decimal.Decimal, error) {
	if p.swapErr != nil {
		return ZERO, ZERO, p.swapErr
	}
	exactInput := amountSpecified.IsPositive()
	var amount0, amount1 decimal.Decimal
	switch {
	case zeroForOne && exactInput:
		amount0 = amountSpecified
		amount1 = amount0.Mul(p.price).Neg()
	case zeroForOne:
		amount1 = amountSpecified
		amount0 = amount1.Neg().Div(p.price)
	case exactInput:
		amount1 = amountSpecified
		amount0 = amount1.Neg().Div(p.price)
	default:
		amount0 = amountSpecified
		amount1 = amount0.Neg().Mul(p.price)
	}
	step := SwapStep{Amount0: amount0, Amount1: amount1, Liquidity: p.liquidity, SqrtPriceStartX96: p.sqrtPriceX96}
	if err := hook.OnSwapStep(step); err != nil {
		return ZERO, ZERO, err
	}
	for _, tick := range p.crosses {
		if err := hook.OnTickCross(tick); err != nil {
			return ZERO, ZERO, err
		}
	}
	if p.tickAfter != nil {
		p.tick = *p.tickAfter
	}
	p.crosses, p.tickAfter = nil, nil
	return amount0, amount1, nil
}

func (p *fakePool) ModifyLiquidity(tickLower, tickUpper int, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	for _, tick := range []int{tickLower, tickUpper} {
		p.gross[tick] = p.gross[tick].Add(delta)
	}
	if p.tick >= tickLower && p.tick < tickUpper {
		p.liquidity = p.liquidity.Add(delta)
	}
	return delta, delta.Mul(p.price), nil
}

func (p *fakePool) Clone() UniswapPool {
	c := *p
	c.gross = map[int]decimal.Decimal{}
	for k, v := range p.gross {
		c.gross[k] = v
	}
	return &c
}

func (p *fakePool) Restore(snapshot UniswapPool) error {
	*p = *snapshot.(*fakePool)
	return nil
}

// feeGrowthPool serves fixed native fee growth values.
type feeGrowthPool struct {
	fakePool
	global  [2]*uint256.Int
	outside map[int][2]*uint256.Int
}

func newFeeGrowthPool(global0, global1 *uint256.Int) *feeGrowthPool {
	return &feeGrowthPool{
		fakePool: *newFakePool(1, 0),
		global:   [2]*uint256.Int{global0, global1},
		outside:  map[int][2]*uint256.Int{},
	}
}

func (p *feeGrowthPool) FeeGrowthGlobalX128() (*uint256.Int, *uint256.Int) {
	return p.global[0], p.global[1]
}

func (p *feeGrowthPool) FeeGrowthOutsideX128(tick int) (*uint256.Int, *uint256.Int) {
	o, ok := p.outside[tick]
	if !ok {
		return new(uint256.Int), new(uint256.Int)
	}
	return o[0], o[1]
}

// q128 returns v * 2^128 as a uint256.
func q128(v uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(v), 128)
}

func testMarketConfig() MarketConfig {
	cfg := DefaultMarketConfig(testVToken)
	cfg.InitialPrice = d(1)
	return cfg
}

func testConstants() Constants {
	return Constants{VBase: testVBase, MinRequiredMargin: ZERO}
}

// newFakeMarket wires a wrapper on a fakePool with the oracle at the pool's
// tick price, so funding does not accrue unless a test moves one of them.
func newFakeMarket(t *testing.T, price int64, tick int) (MarketSet, *fakePool, *ManualClock) {
	t.Helper()
	pool := newFakePool(price, tick)
	priceX128, err := TickToPriceX128(tick, true)
	if err != nil {
		t.Fatal(err)
	}
	clock := NewManualClock(1000)
	w, err := NewVPoolWrapper(testMarketConfig(), testVBase, pool, &FixedOracle{PriceX128: priceX128}, clock)
	if err != nil {
		t.Fatal(err)
	}
	return MarketSet{testVToken: w}, pool, clock
}

type recordingHook struct {
	steps   []SwapStep
	crosses []int
}

func (h *recordingHook) OnSwapStep(step SwapStep) error {
	h.steps = append(h.steps, step)
	return nil
}

func (h *recordingHook) OnTickCross(tick int) error {
	h.crosses = append(h.crosses, tick)
	return nil
}

func mustMulDiv(a, b, den decimal.Decimal) decimal.Decimal {
	r, err := MulDiv(a, b, den)
	if err != nil {
		panic(err)
	}
	return r
}

func mustMulDivRoundingDown(a, b, den decimal.Decimal) decimal.Decimal {
	r, err := MulDivRoundingDown(a, b, den)
	if err != nil {
		panic(err)
	}
	return r
}
