package vtoken_ledger

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ValuesInside is everything a range position snapshots.
type ValuesInside struct {
	SumAX128                  decimal.Decimal
	SumBInsideX128            decimal.Decimal
	SumFpInsideX128           decimal.Decimal
	LongsFeeGrowthInsideX128  *uint256.Int
	ShortsFeeGrowthInsideX128 decimal.Decimal
}

func checkRange(tickLower, tickUpper int) error {
	if tickLower >= tickUpper || tickLower < MIN_TICK || tickUpper > MAX_TICK {
		return INVALID_TICK
	}
	return nil
}

// insideOf resolves below and above from the outside values of the range
// boundaries and returns global - below - above.
func insideOf(global, lowerOutside, upperOutside decimal.Decimal, tickLower, tickUpper, tickCurrent int) (decimal.Decimal, error) {
	below := lowerOutside
	if tickCurrent < tickLower {
		below = global.Sub(lowerOutside)
	}
	above := upperOutside
	if tickCurrent >= tickUpper {
		above = global.Sub(upperOutside)
	}
	return checkInt256(global.Sub(below).Sub(above))
}

func GetNetPositionInside(reg *TickRegistry, sumBX128 decimal.Decimal, tickLower, tickUpper, tickCurrent int) (decimal.Decimal, error) {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return ZERO, err
	}
	return insideOf(
		sumBX128,
		reg.Get(tickLower).SumBOutsideX128,
		reg.Get(tickUpper).SumBOutsideX128,
		tickLower, tickUpper, tickCurrent,
	)
}

func GetExtendedFeeGrowthInside(reg *TickRegistry, sumExFeeGlobalX128 decimal.Decimal, tickLower, tickUpper, tickCurrent int) (decimal.Decimal, error) {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return ZERO, err
	}
	return insideOf(
		sumExFeeGlobalX128,
		reg.Get(tickLower).SumExFeeOutsideX128,
		reg.Get(tickUpper).SumExFeeOutsideX128,
		tickLower, tickUpper, tickCurrent,
	)
}

// GetFundingPaymentGrowthInside extrapolates both boundary records to the
// current sumA before resolving them.
func GetFundingPaymentGrowthInside(reg *TickRegistry, fp *FundingState, tickLower, tickUpper, tickCurrent int) (decimal.Decimal, error) {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return ZERO, err
	}
	lowerFp, err := reg.Get(tickLower).ExtrapolatedSumFpOutsideX128(fp.SumAX128)
	if err != nil {
		return ZERO, err
	}
	upperFp, err := reg.Get(tickUpper).ExtrapolatedSumFpOutsideX128(fp.SumAX128)
	if err != nil {
		return ZERO, err
	}
	return insideOf(fp.SumFpX128, lowerFp, upperFp, tickLower, tickUpper, tickCurrent)
}

// BaseFeeSlot is the pool token index that holds vBase.
func BaseFeeSlot(isVTokenToken0 bool) int {
	if isVTokenToken0 {
		return 1
	}
	return 0
}

func pickSlot(g0, g1 *uint256.Int, slot int) *uint256.Int {
	if slot == 1 {
		return g1
	}
	return g0
}

// GetUniswapFeeGrowthInside reads the pool's native fee growth in the vBase
// slot. Arithmetic wraps like the pool's own.
func GetUniswapFeeGrowthInside(pool PoolObserver, tickLower, tickUpper, tickCurrent int, isVTokenToken0 bool) (*uint256.Int, error) {
	if err := checkRange(tickLower, tickUpper); err != nil {
		return nil, err
	}
	slot := BaseFeeSlot(isVTokenToken0)
	g0, g1 := pool.FeeGrowthGlobalX128()
	global := pickSlot(g0, g1, slot)
	l0, l1 := pool.FeeGrowthOutsideX128(tickLower)
	lowerOutside := pickSlot(l0, l1, slot)
	u0, u1 := pool.FeeGrowthOutsideX128(tickUpper)
	upperOutside := pickSlot(u0, u1, slot)

	below := lowerOutside
	if tickCurrent < tickLower {
		below = Mod256Sub(global, lowerOutside)
	}
	above := upperOutside
	if tickCurrent >= tickUpper {
		above = Mod256Sub(global, upperOutside)
	}
	return Mod256Sub(Mod256Sub(global, below), above), nil
}
