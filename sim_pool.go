package vtoken_ledger

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math/big"
	"sort"

	"github.com/daoleno/uniswapv3-sdk/constants"
	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const maxObservations = 1024

type Slot0 struct {
	SqrtPriceX96 decimal.Decimal `json:"sqrtPriceX96"`
	Tick         int             `json:"tick"`
}

type Observation struct {
	Timestamp      uint64 `json:"timestamp"`
	TickCumulative int64  `json:"tickCumulative"`
}

// SimPool is an in-memory concentrated liquidity pool. Positions are owned by
// the ledger, so the pool only keeps ticks and active liquidity.
type SimPool struct {
	Token0               common.Address  `json:"token0"`
	Token1               common.Address  `json:"token1"`
	Fee                  uint32          `json:"fee"`
	TickSpacing          int             `json:"tickSpacing"`
	MaxLiquidityPerTick  decimal.Decimal `json:"maxLiquidityPerTick"`
	Slot0                Slot0           `json:"slot0"`
	ActiveLiquidity      decimal.Decimal `json:"liquidity"`
	FeeGrowthGlobal0X128 *uint256.Int    `json:"feeGrowthGlobal0X128"`
	FeeGrowthGlobal1X128 *uint256.Int    `json:"feeGrowthGlobal1X128"`
	TickManager          *SimTickManager `json:"ticks"`
	Observations         []Observation   `json:"observations"`

	clock Clock
}

// NewSimPool creates a pool between two tokens at sqrtPriceX96. The tokens
// are sorted so token0 has the lower address.
func NewSimPool(tokenA, tokenB common.Address, fee uint32, tickSpacing int, sqrtPriceX96 decimal.Decimal, clock Clock) (*SimPool, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing %d: %w", tickSpacing, INVALID_TICK)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	token0, token1 := tokenA, tokenB
	if bytes.Compare(token0.Bytes(), token1.Bytes()) > 0 {
		token0, token1 = token1, token0
	}
	p := &SimPool{
		Token0:               token0,
		Token1:               token1,
		Fee:                  fee,
		TickSpacing:          tickSpacing,
		MaxLiquidityPerTick:  TickSpacingToMaxLiquidityPerTick(tickSpacing),
		ActiveLiquidity:      ZERO,
		FeeGrowthGlobal0X128: new(uint256.Int),
		FeeGrowthGlobal1X128: new(uint256.Int),
		TickManager:          NewSimTickManager(),
		clock:                clock,
	}
	if err := p.Initialize(sqrtPriceX96); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SimPool) Initialize(sqrtPriceX96 decimal.Decimal) error {
	if !p.Slot0.SqrtPriceX96.IsZero() {
		return fmt.Errorf("pool already initialized")
	}
	tick, err := GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}
	p.Slot0 = Slot0{SqrtPriceX96: sqrtPriceX96, Tick: tick}
	p.Observations = []Observation{{Timestamp: p.clock.Now(), TickCumulative: 0}}
	return nil
}

// SetClock is needed after a pool is loaded from a snapshot.
func (p *SimPool) SetClock(clock Clock) {
	p.clock = clock
}

func (p *SimPool) Clone() UniswapPool {
	observations := make([]Observation, len(p.Observations))
	copy(observations, p.Observations)
	return &SimPool{
		Token0:               p.Token0,
		Token1:               p.Token1,
		Fee:                  p.Fee,
		TickSpacing:          p.TickSpacing,
		MaxLiquidityPerTick:  p.MaxLiquidityPerTick,
		Slot0:                p.Slot0,
		ActiveLiquidity:      p.ActiveLiquidity,
		FeeGrowthGlobal0X128: new(uint256.Int).Set(p.FeeGrowthGlobal0X128),
		FeeGrowthGlobal1X128: new(uint256.Int).Set(p.FeeGrowthGlobal1X128),
		TickManager:          p.TickManager.Clone(),
		Observations:         observations,
		clock:                p.clock,
	}
}

func (p *SimPool) Restore(snapshot UniswapPool) error {
	s, ok := snapshot.(*SimPool)
	if !ok {
		return fmt.Errorf("cannot restore SimPool from %T", snapshot)
	}
	clock := p.clock
	*p = *s
	p.clock = clock
	return nil
}

func (p *SimPool) CurrentTick() int {
	return p.Slot0.Tick
}

func (p *SimPool) SqrtPriceX96() decimal.Decimal {
	return p.Slot0.SqrtPriceX96
}

func (p *SimPool) Liquidity() decimal.Decimal {
	return p.ActiveLiquidity
}

func (p *SimPool) FeeGrowthGlobalX128() (*uint256.Int, *uint256.Int) {
	return new(uint256.Int).Set(p.FeeGrowthGlobal0X128), new(uint256.Int).Set(p.FeeGrowthGlobal1X128)
}

func (p *SimPool) FeeGrowthOutsideX128(tick int) (*uint256.Int, *uint256.Int) {
	t, err := p.TickManager.GetTickReadonly(tick)
	if err != nil {
		return new(uint256.Int), new(uint256.Int)
	}
	return t.FeeGrowthOutside0X128, t.FeeGrowthOutside1X128
}

func (p *SimPool) TickInitialized(tick int) bool {
	return p.TickManager.IsInitialized(tick)
}

// writeObservation accumulates the current tick up to now. It has to run
// before the tick changes.
func (p *SimPool) writeObservation() {
	now := p.clock.Now()
	last := p.Observations[len(p.Observations)-1]
	if now <= last.Timestamp {
		return
	}
	p.Observations = append(p.Observations, Observation{
		Timestamp:      now,
		TickCumulative: last.TickCumulative + int64(p.Slot0.Tick)*int64(now-last.Timestamp),
	})
	if len(p.Observations) > maxObservations {
		p.Observations = p.Observations[len(p.Observations)-maxObservations:]
	}
}

func (p *SimPool) tickCumulativeAt(ts uint64) int64 {
	obs := p.Observations
	last := obs[len(obs)-1]
	if ts >= last.Timestamp {
		return last.TickCumulative + int64(p.Slot0.Tick)*int64(ts-last.Timestamp)
	}
	// first observation after ts; the tick is constant between neighbours
	i := sort.Search(len(obs), func(i int) bool { return obs[i].Timestamp > ts })
	if i == 0 {
		return obs[0].TickCumulative
	}
	a, b := obs[i-1], obs[i]
	slope := (b.TickCumulative - a.TickCumulative) / int64(b.Timestamp-a.Timestamp)
	return a.TickCumulative + slope*int64(ts-a.Timestamp)
}

// ObserveTwapTick returns the arithmetic mean tick over window seconds. When
// history is shorter than the window the oldest observation is used.
func (p *SimPool) ObserveTwapTick(window uint32) (int, error) {
	if len(p.Observations) == 0 {
		return 0, POOL_NOT_INITIALIZED
	}
	now := p.clock.Now()
	oldest := p.Observations[0].Timestamp
	start := oldest
	if uint64(window) <= now && now-uint64(window) > oldest {
		start = now - uint64(window)
	}
	if window == 0 || start >= now {
		return p.Slot0.Tick, nil
	}
	delta := p.tickCumulativeAt(now) - p.tickCumulativeAt(start)
	elapsed := int64(now - start)
	mean := delta / elapsed
	if delta < 0 && delta%elapsed != 0 {
		mean--
	}
	return int(mean), nil
}

func (p *SimPool) checkTicks(tickLower, tickUpper int) error {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return err
	}
	if tickLower%p.TickSpacing != 0 || tickUpper%p.TickSpacing != 0 {
		return fmt.Errorf("ticks [%d, %d) off spacing %d: %w", tickLower, tickUpper, p.TickSpacing, INVALID_TICK)
	}
	return nil
}

// ModifyLiquidity returns the token amounts owed to the pool, negative when
// the pool pays out.
func (p *SimPool) ModifyLiquidity(tickLower, tickUpper int, liquidityDelta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return ZERO, ZERO, err
	}
	if liquidityDelta.IsZero() {
		return ZERO, ZERO, nil
	}
	lower, err := p.TickManager.GetTickAndInitIfAbsent(tickLower)
	if err != nil {
		return ZERO, ZERO, err
	}
	flippedLower, err := lower.Update(liquidityDelta, p.Slot0.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, false, p.MaxLiquidityPerTick)
	if err != nil {
		return ZERO, ZERO, err
	}
	upper, err := p.TickManager.GetTickAndInitIfAbsent(tickUpper)
	if err != nil {
		return ZERO, ZERO, err
	}
	flippedUpper, err := upper.Update(liquidityDelta, p.Slot0.Tick, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, true, p.MaxLiquidityPerTick)
	if err != nil {
		return ZERO, ZERO, err
	}

	amount0, amount1 := ZERO, ZERO
	sqrtLower, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return ZERO, ZERO, err
	}
	sqrtUpper, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return ZERO, ZERO, err
	}
	if p.Slot0.Tick < tickLower {
		amount0, err = GetAmount0Delta(sqrtLower, sqrtUpper, liquidityDelta)
		if err != nil {
			return ZERO, ZERO, err
		}
	} else if p.Slot0.Tick < tickUpper {
		amount0, err = GetAmount0Delta(p.Slot0.SqrtPriceX96, sqrtUpper, liquidityDelta)
		if err != nil {
			return ZERO, ZERO, err
		}
		amount1, err = GetAmount1Delta(sqrtLower, p.Slot0.SqrtPriceX96, liquidityDelta)
		if err != nil {
			return ZERO, ZERO, err
		}
		p.ActiveLiquidity, err = LiquidityAddDelta(p.ActiveLiquidity, liquidityDelta)
		if err != nil {
			return ZERO, ZERO, err
		}
	} else {
		amount1, err = GetAmount1Delta(sqrtLower, sqrtUpper, liquidityDelta)
		if err != nil {
			return ZERO, ZERO, err
		}
	}
	if liquidityDelta.IsNegative() {
		if flippedLower {
			p.TickManager.Clear(tickLower)
		}
		if flippedUpper {
			p.TickManager.Clear(tickUpper)
		}
	}
	return amount0, amount1, nil
}

type swapState struct {
	amountSpecifiedRemaining decimal.Decimal
	amountCalculated         decimal.Decimal
	sqrtPriceX96             decimal.Decimal
	tick                     int
	liquidity                decimal.Decimal
	feeGrowthGlobalX128      *uint256.Int
}

type stepComputations struct {
	sqrtPriceStartX96 decimal.Decimal
	tickNext          int
	initialized       bool
	sqrtPriceNextX96  decimal.Decimal
	amountIn          decimal.Decimal
	amountOut         decimal.Decimal
	feeAmount         decimal.Decimal
}

func (p *SimPool) Swap(zeroForOne bool, amountSpecified decimal.Decimal, sqrtPriceLimitX96 decimal.Decimal, hook SwapHook) (decimal.Decimal, decimal.Decimal, error) {
	if amountSpecified.IsZero() {
		return ZERO, ZERO, INVALID_AMOUNT
	}
	if sqrtPriceLimitX96.IsZero() {
		if zeroForOne {
			sqrtPriceLimitX96 = MIN_SQRT_RATIO.Add(ONE)
		} else {
			sqrtPriceLimitX96 = MAX_SQRT_RATIO.Sub(ONE)
		}
	}
	if zeroForOne {
		if !sqrtPriceLimitX96.GreaterThan(MIN_SQRT_RATIO) || !sqrtPriceLimitX96.LessThan(p.Slot0.SqrtPriceX96) {
			return ZERO, ZERO, PRICE_LIMIT
		}
	} else {
		if !sqrtPriceLimitX96.LessThan(MAX_SQRT_RATIO) || !sqrtPriceLimitX96.GreaterThan(p.Slot0.SqrtPriceX96) {
			return ZERO, ZERO, PRICE_LIMIT
		}
	}
	p.writeObservation()

	exactInput := amountSpecified.IsPositive()
	state := swapState{
		amountSpecifiedRemaining: amountSpecified,
		amountCalculated:         ZERO,
		sqrtPriceX96:             p.Slot0.SqrtPriceX96,
		tick:                     p.Slot0.Tick,
		liquidity:                p.ActiveLiquidity,
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.FeeGrowthGlobal0X128)
	} else {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.FeeGrowthGlobal1X128)
	}

	for !state.amountSpecifiedRemaining.IsZero() && !state.sqrtPriceX96.Equal(sqrtPriceLimitX96) {
		step := stepComputations{sqrtPriceStartX96: state.sqrtPriceX96}
		tickNext, initialized, err := p.TickManager.GetNextInitializedTick(state.tick, p.TickSpacing, zeroForOne)
		if err != nil {
			return ZERO, ZERO, err
		}
		step.tickNext = tickNext
		step.initialized = initialized
		if step.tickNext < MIN_TICK {
			step.tickNext = MIN_TICK
		} else if step.tickNext > MAX_TICK {
			step.tickNext = MAX_TICK
		}
		step.sqrtPriceNextX96, err = GetSqrtRatioAtTick(step.tickNext)
		if err != nil {
			return ZERO, ZERO, err
		}
		sqrtRatioTargetX96 := step.sqrtPriceNextX96
		if zeroForOne && step.sqrtPriceNextX96.LessThan(sqrtPriceLimitX96) {
			sqrtRatioTargetX96 = sqrtPriceLimitX96
		} else if !zeroForOne && step.sqrtPriceNextX96.GreaterThan(sqrtPriceLimitX96) {
			sqrtRatioTargetX96 = sqrtPriceLimitX96
		}

		nextSqrtPrice, amountIn, amountOut, feeAmount, err := utils.ComputeSwapStep(
			state.sqrtPriceX96.BigInt(),
			sqrtRatioTargetX96.BigInt(),
			state.liquidity.BigInt(),
			state.amountSpecifiedRemaining.BigInt(),
			constants.FeeAmount(p.Fee),
		)
		if err != nil {
			return ZERO, ZERO, err
		}
		state.sqrtPriceX96 = decimal.NewFromBigInt(nextSqrtPrice, 0)
		step.amountIn = decimal.NewFromBigInt(amountIn, 0)
		step.amountOut = decimal.NewFromBigInt(amountOut, 0)
		step.feeAmount = decimal.NewFromBigInt(feeAmount, 0)

		if exactInput {
			state.amountSpecifiedRemaining = state.amountSpecifiedRemaining.Sub(step.amountIn.Add(step.feeAmount))
			state.amountCalculated = state.amountCalculated.Sub(step.amountOut)
		} else {
			state.amountSpecifiedRemaining = state.amountSpecifiedRemaining.Add(step.amountOut)
			state.amountCalculated = state.amountCalculated.Add(step.amountIn.Add(step.feeAmount))
		}
		if state.liquidity.IsPositive() && step.feeAmount.IsPositive() {
			growth, err := feeGrowthDelta(step.feeAmount, state.liquidity)
			if err != nil {
				return ZERO, ZERO, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
		}

		if hook != nil && (step.amountIn.IsPositive() || step.amountOut.IsPositive()) {
			paid := step.amountIn.Add(step.feeAmount)
			s := SwapStep{Liquidity: state.liquidity, SqrtPriceStartX96: step.sqrtPriceStartX96}
			if zeroForOne {
				s.Amount0, s.Amount1 = paid, step.amountOut.Neg()
			} else {
				s.Amount0, s.Amount1 = step.amountOut.Neg(), paid
			}
			if err := hook.OnSwapStep(s); err != nil {
				return ZERO, ZERO, err
			}
		}

		if state.sqrtPriceX96.Equal(step.sqrtPriceNextX96) {
			if step.initialized {
				nextTick, err := p.TickManager.GetTickAndInitIfAbsent(step.tickNext)
				if err != nil {
					return ZERO, ZERO, err
				}
				var liquidityNet decimal.Decimal
				if zeroForOne {
					liquidityNet = nextTick.Cross(state.feeGrowthGlobalX128, p.FeeGrowthGlobal1X128)
				} else {
					liquidityNet = nextTick.Cross(p.FeeGrowthGlobal0X128, state.feeGrowthGlobalX128)
				}
				if hook != nil {
					if err := hook.OnTickCross(step.tickNext); err != nil {
						return ZERO, ZERO, err
					}
				}
				if zeroForOne {
					liquidityNet = liquidityNet.Neg()
				}
				state.liquidity, err = LiquidityAddDelta(state.liquidity, liquidityNet)
				if err != nil {
					return ZERO, ZERO, err
				}
			}
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX96.Equal(step.sqrtPriceStartX96) {
			state.tick, err = GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return ZERO, ZERO, err
			}
		}
	}

	p.Slot0 = Slot0{SqrtPriceX96: state.sqrtPriceX96, Tick: state.tick}
	p.ActiveLiquidity = state.liquidity
	if zeroForOne {
		p.FeeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.FeeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	var amount0, amount1 decimal.Decimal
	if zeroForOne == exactInput {
		amount0 = amountSpecified.Sub(state.amountSpecifiedRemaining)
		amount1 = state.amountCalculated
	} else {
		amount0 = state.amountCalculated
		amount1 = amountSpecified.Sub(state.amountSpecifiedRemaining)
	}
	return amount0, amount1, nil
}

func feeGrowthDelta(feeAmount, liquidity decimal.Decimal) (*uint256.Int, error) {
	growth := new(big.Int).Lsh(feeAmount.BigInt(), 128)
	growth.Quo(growth, liquidity.BigInt())
	u, overflow := uint256.FromBig(growth)
	if overflow {
		return nil, ARITHMETIC_OVERFLOW
	}
	return u, nil
}

func (p *SimPool) GormDataType() string {
	return "LONGTEXT"
}

func (p *SimPool) Scan(value interface{}) error {
	return scanJSON(value, p, "SimPool")
}

func (p *SimPool) Value() (driver.Value, error) {
	return valueJSON(p)
}
