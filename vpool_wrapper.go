package vtoken_ledger

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// VPoolWrapper is the market handle of one vToken. It owns the funding,
// extended fee and tick accumulator state and drives the underlying pool.
type VPoolWrapper struct {
	Config      MarketConfig      `json:"config"`
	VBase       common.Address    `json:"vBase"`
	Funding     *FundingState     `json:"funding"`
	ExtendedFee *ExtendedFeeState `json:"extendedFee"`
	Ticks       *TickRegistry     `json:"ticks"`

	pool    UniswapPool
	oracle  Oracle
	clock   Clock
	metrics *Metrics
}

// SwapResult holds the trader side deltas of a swap. ExtendedFee is already
// included in VBaseDelta.
type SwapResult struct {
	VTokenDelta decimal.Decimal
	VBaseDelta  decimal.Decimal
	ExtendedFee decimal.Decimal
	TickAfter   int
}

// LiquidityChangeResult holds the principal the pool took (positive) or
// released (negative).
type LiquidityChangeResult struct {
	VTokenPrincipal decimal.Decimal
	VBasePrincipal  decimal.Decimal
}

func NewVPoolWrapper(cfg MarketConfig, vBase common.Address, pool UniswapPool, oracle Oracle, clock Clock) (*VPoolWrapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil || oracle == nil {
		return nil, fmt.Errorf("market %s: pool and oracle are required", cfg.VToken)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &VPoolWrapper{
		Config:      cfg,
		VBase:       vBase,
		Funding:     NewFundingState(clock.Now()),
		ExtendedFee: NewExtendedFeeState(),
		Ticks:       NewTickRegistry(),
		pool:        pool,
		oracle:      oracle,
		clock:       clock,
	}, nil
}

func (w *VPoolWrapper) Clone() *VPoolWrapper {
	return &VPoolWrapper{
		Config:      w.Config,
		VBase:       w.VBase,
		Funding:     w.Funding.Clone(),
		ExtendedFee: w.ExtendedFee.Clone(),
		Ticks:       w.Ticks.Clone(),
		pool:        w.pool.Clone(),
		oracle:      w.oracle,
		clock:       w.clock,
		metrics:     w.metrics,
	}
}

// restore copies a Clone of w back in place, so handles to w and its pool
// stay valid.
func (w *VPoolWrapper) restore(backup *VPoolWrapper) error {
	if err := w.pool.Restore(backup.pool); err != nil {
		return err
	}
	*w.Funding = *backup.Funding
	*w.ExtendedFee = *backup.ExtendedFee
	*w.Ticks = *backup.Ticks
	return nil
}

func (w *VPoolWrapper) VToken() common.Address {
	return w.Config.VToken
}

func (w *VPoolWrapper) Pool() UniswapPool {
	return w.pool
}

func (w *VPoolWrapper) Now() uint64 {
	return w.clock.Now()
}

// IsVTokenToken0 follows the pool's address ordering.
func (w *VPoolWrapper) IsVTokenToken0() bool {
	return bytes.Compare(w.Config.VToken.Bytes(), w.VBase.Bytes()) < 0
}

func (w *VPoolWrapper) CurrentTick() int {
	return w.pool.CurrentTick()
}

func (w *VPoolWrapper) RealPriceX128() (decimal.Decimal, error) {
	return w.oracle.GetTwapPriceX128(w.Config.TwapDuration)
}

func (w *VPoolWrapper) VirtualPriceX128() (decimal.Decimal, error) {
	return SqrtPriceX96ToPriceX128(w.pool.SqrtPriceX96(), w.IsVTokenToken0())
}

func (w *VPoolWrapper) TwapTick() (int, error) {
	return w.pool.ObserveTwapTick(w.Config.TwapDuration)
}

func (w *VPoolWrapper) TwapSqrtPriceX96() (decimal.Decimal, error) {
	tick, err := w.TwapTick()
	if err != nil {
		return ZERO, err
	}
	return GetSqrtRatioAtTick(tick)
}

// TwapPriceX128 is the vBase per vToken price used for valuation.
func (w *VPoolWrapper) TwapPriceX128() (decimal.Decimal, error) {
	tick, err := w.TwapTick()
	if err != nil {
		return ZERO, err
	}
	return TickToPriceX128(tick, w.IsVTokenToken0())
}

// UpdateGlobalFunding accrues funding up to now on the prevailing net position.
func (w *VPoolWrapper) UpdateGlobalFunding() error {
	realPriceX128, err := w.RealPriceX128()
	if err != nil {
		return err
	}
	virtualPriceX128, err := w.VirtualPriceX128()
	if err != nil {
		return err
	}
	return w.Funding.Accrue(w.clock.Now(), realPriceX128, virtualPriceX128, w.Config.TimeHorizon)
}

func (w *VPoolWrapper) splitAmounts(amount0, amount1 decimal.Decimal) (vToken, vBase decimal.Decimal) {
	if w.IsVTokenToken0() {
		return amount0, amount1
	}
	return amount1, amount0
}

type wrapperSwapHook struct {
	w             *VPoolWrapper
	timestamp     uint64
	realPriceX128 decimal.Decimal
	extendedFee   decimal.Decimal
}

func (h *wrapperSwapHook) OnSwapStep(step SwapStep) error {
	w := h.w
	vTokenAmount, vBaseAmount := w.splitAmounts(step.Amount0, step.Amount1)
	virtualPriceX128, err := SqrtPriceX96ToPriceX128(step.SqrtPriceStartX96, w.IsVTokenToken0())
	if err != nil {
		return err
	}
	// traders receive what the pool gives out
	err = w.Funding.RegisterTrade(
		vTokenAmount.Neg(),
		step.Liquidity,
		h.timestamp,
		h.realPriceX128,
		virtualPriceX128,
		w.Config.TimeHorizon,
	)
	if err != nil {
		return err
	}
	fee, err := ExtendedFeeAmount(vBaseAmount, w.Config.ExtendedFeeBps)
	if err != nil {
		return err
	}
	if err := w.ExtendedFee.Accrue(fee, step.Liquidity); err != nil {
		return err
	}
	h.extendedFee = h.extendedFee.Add(fee)
	logrus.Debugf("market %s: trade %s vtoken at liquidity %s, sumA %s sumB %s",
		w.Config.VToken, vTokenAmount.Neg(), step.Liquidity, w.Funding.SumAX128, w.Funding.SumBX128)
	return nil
}

func (h *wrapperSwapHook) OnTickCross(tick int) error {
	w := h.w
	if err := w.Ticks.Cross(tick, w.Funding, w.ExtendedFee.SumExFeeGlobalX128); err != nil {
		return err
	}
	w.metrics.TickCrossed(w.Config.VToken)
	logrus.Debugf("market %s: crossed tick %d", w.Config.VToken, tick)
	return nil
}

// Swap trades on the pool for a trader. A positive amount goes long. In
// notional mode the amount is vBase, otherwise vToken.
func (w *VPoolWrapper) Swap(amount decimal.Decimal, isNotional bool, sqrtPriceLimitX96 decimal.Decimal) (SwapResult, error) {
	if amount.IsZero() {
		return SwapResult{}, INVALID_AMOUNT
	}
	realPriceX128, err := w.RealPriceX128()
	if err != nil {
		return SwapResult{}, err
	}
	isToken0 := w.IsVTokenToken0()
	buy := amount.IsPositive()
	// buying vToken means vBase goes into the pool
	zeroForOne := buy != isToken0
	var amountSpecified decimal.Decimal
	if isNotional {
		// exact vBase in for a buy, exact vBase out for a sell
		amountSpecified = amount
	} else {
		// exact vToken out for a buy, exact vToken in for a sell
		amountSpecified = amount.Neg()
	}
	hook := &wrapperSwapHook{
		w:             w,
		timestamp:     w.clock.Now(),
		realPriceX128: realPriceX128,
		extendedFee:   ZERO,
	}
	amount0, amount1, err := w.pool.Swap(zeroForOne, amountSpecified, sqrtPriceLimitX96, hook)
	if err != nil {
		return SwapResult{}, err
	}
	vTokenAmount, vBaseAmount := w.splitAmounts(amount0, amount1)
	res := SwapResult{
		VTokenDelta: vTokenAmount.Neg(),
		VBaseDelta:  vBaseAmount.Neg().Sub(hook.extendedFee),
		ExtendedFee: hook.extendedFee,
		TickAfter:   w.pool.CurrentTick(),
	}
	w.metrics.TradeRegistered(w.Config.VToken, isNotional)
	return res, nil
}

// LiquidityChange moves liquidity on the pool. Funding is accrued first and
// boundary ticks the pool is about to initialize get fresh records.
func (w *VPoolWrapper) LiquidityChange(tickLower, tickUpper int, liquidityDelta decimal.Decimal) (LiquidityChangeResult, error) {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return LiquidityChangeResult{}, err
	}
	if tickLower%w.Config.TickSpacing != 0 || tickUpper%w.Config.TickSpacing != 0 {
		return LiquidityChangeResult{}, fmt.Errorf("range [%d, %d) off spacing %d: %w",
			tickLower, tickUpper, w.Config.TickSpacing, INVALID_TICK)
	}
	if err := w.UpdateGlobalFunding(); err != nil {
		return LiquidityChangeResult{}, err
	}
	if liquidityDelta.IsPositive() {
		current := w.pool.CurrentTick()
		for _, tick := range []int{tickLower, tickUpper} {
			if w.pool.TickInitialized(tick) {
				continue
			}
			if err := w.Ticks.Initialize(tick, current, w.Funding, w.ExtendedFee.SumExFeeGlobalX128); err != nil {
				return LiquidityChangeResult{}, err
			}
		}
	}
	amount0, amount1, err := w.pool.ModifyLiquidity(tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return LiquidityChangeResult{}, err
	}
	vTokenAmount, vBaseAmount := w.splitAmounts(amount0, amount1)
	return LiquidityChangeResult{VTokenPrincipal: vTokenAmount, VBasePrincipal: vBaseAmount}, nil
}

// GetValuesInside reads every inside growth of a range at the pool's current tick.
func (w *VPoolWrapper) GetValuesInside(tickLower, tickUpper int) (ValuesInside, error) {
	current := w.pool.CurrentTick()
	sumBInside, err := GetNetPositionInside(w.Ticks, w.Funding.SumBX128, tickLower, tickUpper, current)
	if err != nil {
		return ValuesInside{}, err
	}
	sumFpInside, err := GetFundingPaymentGrowthInside(w.Ticks, w.Funding, tickLower, tickUpper, current)
	if err != nil {
		return ValuesInside{}, err
	}
	longs, err := GetUniswapFeeGrowthInside(w.pool, tickLower, tickUpper, current, w.IsVTokenToken0())
	if err != nil {
		return ValuesInside{}, err
	}
	shorts, err := GetExtendedFeeGrowthInside(w.Ticks, w.ExtendedFee.SumExFeeGlobalX128, tickLower, tickUpper, current)
	if err != nil {
		return ValuesInside{}, err
	}
	return ValuesInside{
		SumAX128:                  w.Funding.SumAX128,
		SumBInsideX128:            sumBInside,
		SumFpInsideX128:           sumFpInside,
		LongsFeeGrowthInsideX128:  longs,
		ShortsFeeGrowthInsideX128: shorts,
	}, nil
}

// RangeVTokenExposure is the vToken a range of liquidity holds once price has
// fallen through all of it.
func (w *VPoolWrapper) RangeVTokenExposure(tickLower, tickUpper int, liquidity decimal.Decimal) (decimal.Decimal, error) {
	sqrtLower, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return ZERO, err
	}
	sqrtUpper, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return ZERO, err
	}
	if w.IsVTokenToken0() {
		return GetAmount0DeltaWithRoundUp(sqrtLower, sqrtUpper, liquidity, false)
	}
	return GetAmount1DeltaWithRoundUp(sqrtLower, sqrtUpper, liquidity, false)
}

// RangeAmountsAt is the vToken and vBase a range holds at sqrtPriceX96.
func (w *VPoolWrapper) RangeAmountsAt(sqrtPriceX96 decimal.Decimal, tickLower, tickUpper int, liquidity decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	amount0, amount1, err := GetAmountsForLiquidity(sqrtPriceX96, tickLower, tickUpper, liquidity.Neg())
	if err != nil {
		return ZERO, ZERO, err
	}
	// negative liquidity rounds down, which is what a withdrawal would release
	vToken, vBase := w.splitAmounts(amount0.Neg(), amount1.Neg())
	return vToken, vBase, nil
}

// attach restores the runtime dependencies of a wrapper read from a snapshot.
func (w *VPoolWrapper) attach(pool UniswapPool, oracle Oracle, clock Clock, metrics *Metrics) {
	if clock == nil {
		clock = SystemClock{}
	}
	w.pool = pool
	w.oracle = oracle
	w.clock = clock
	w.metrics = metrics
}

func (w *VPoolWrapper) GormDataType() string {
	return "LONGTEXT"
}

func (w *VPoolWrapper) Scan(value interface{}) error {
	return scanJSON(value, w, "VPoolWrapper")
}

func (w *VPoolWrapper) Value() (driver.Value, error) {
	return valueJSON(w)
}
