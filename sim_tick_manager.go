package vtoken_ledger

import (
	"encoding/json"
	"errors"

	"github.com/google/btree"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// SimTick is a native pool tick.
type SimTick struct {
	TickIndex             int             `json:"tickIndex"`
	LiquidityGross        decimal.Decimal `json:"liquidityGross"`
	LiquidityNet          decimal.Decimal `json:"liquidityNet"`
	FeeGrowthOutside0X128 *uint256.Int    `json:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128 *uint256.Int    `json:"feeGrowthOutside1X128"`
}

func NewSimTick(index int) (*SimTick, error) {
	if index > MAX_TICK || index < MIN_TICK {
		return nil, INVALID_TICK
	}
	return &SimTick{
		TickIndex:             index,
		LiquidityGross:        ZERO,
		LiquidityNet:          ZERO,
		FeeGrowthOutside0X128: new(uint256.Int),
		FeeGrowthOutside1X128: new(uint256.Int),
	}, nil
}

func (t *SimTick) Clone() *SimTick {
	return &SimTick{
		TickIndex:             t.TickIndex,
		LiquidityGross:        t.LiquidityGross,
		LiquidityNet:          t.LiquidityNet,
		FeeGrowthOutside0X128: new(uint256.Int).Set(t.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128: new(uint256.Int).Set(t.FeeGrowthOutside1X128),
	}
}

func (t *SimTick) Initialized() bool {
	return !t.LiquidityGross.IsZero()
}

// Update applies a liquidity change at this tick and reports whether the tick
// flipped between initialized and uninitialized.
func (t *SimTick) Update(
	liquidityDelta decimal.Decimal,
	tickCurrent int,
	feeGrowthGlobal0X128 *uint256.Int,
	feeGrowthGlobal1X128 *uint256.Int,
	upper bool,
	maxLiquidity decimal.Decimal,
) (bool, error) {
	liquidityGrossBefore := t.LiquidityGross
	liquidityGrossAfter, err := LiquidityAddDelta(liquidityGrossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if liquidityGrossAfter.GreaterThan(maxLiquidity) {
		return false, INVALID_LIQUIDITY
	}
	flipped := liquidityGrossAfter.IsZero() != liquidityGrossBefore.IsZero()

	// growth before initialization is assumed to have happened below the tick
	if liquidityGrossBefore.IsZero() && t.TickIndex <= tickCurrent {
		t.FeeGrowthOutside0X128 = new(uint256.Int).Set(feeGrowthGlobal0X128)
		t.FeeGrowthOutside1X128 = new(uint256.Int).Set(feeGrowthGlobal1X128)
	}
	liquidityNet := t.LiquidityNet.Add(liquidityDelta)
	if upper {
		liquidityNet = t.LiquidityNet.Sub(liquidityDelta)
	}
	if liquidityNet.GreaterThan(MaxInt128) || liquidityNet.LessThan(MinInt128) {
		return false, ARITHMETIC_OVERFLOW
	}
	t.LiquidityGross = liquidityGrossAfter
	t.LiquidityNet = liquidityNet
	return flipped, nil
}

func (t *SimTick) Cross(feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) decimal.Decimal {
	t.FeeGrowthOutside0X128 = Mod256Sub(feeGrowthGlobal0X128, t.FeeGrowthOutside0X128)
	t.FeeGrowthOutside1X128 = Mod256Sub(feeGrowthGlobal1X128, t.FeeGrowthOutside1X128)
	return t.LiquidityNet
}

func simTickLess(a, b *SimTick) bool {
	return a.TickIndex < b.TickIndex
}

// SimTickManager keeps the initialized ticks of a SimPool in index order.
type SimTickManager struct {
	ticks *btree.BTreeG[*SimTick]
}

func NewSimTickManager() *SimTickManager {
	return &SimTickManager{ticks: btree.NewG(tickRegistryDegree, simTickLess)}
}

func (tm *SimTickManager) Clone() *SimTickManager {
	newM := NewSimTickManager()
	tm.ticks.Ascend(func(t *SimTick) bool {
		newM.ticks.ReplaceOrInsert(t.Clone())
		return true
	})
	return newM
}

func (tm *SimTickManager) Len() int {
	return tm.ticks.Len()
}

func (tm *SimTickManager) GetTickAndInitIfAbsent(index int) (*SimTick, error) {
	if tick, ok := tm.ticks.Get(&SimTick{TickIndex: index}); ok {
		return tick, nil
	}
	tick, err := NewSimTick(index)
	if err != nil {
		return nil, err
	}
	tm.ticks.ReplaceOrInsert(tick)
	return tick, nil
}

func (tm *SimTickManager) GetTickReadonly(index int) (*SimTick, error) {
	if tick, ok := tm.ticks.Get(&SimTick{TickIndex: index}); ok {
		return tick.Clone(), nil
	}
	return NewSimTick(index)
}

func (tm *SimTickManager) IsInitialized(index int) bool {
	tick, ok := tm.ticks.Get(&SimTick{TickIndex: index})
	return ok && tick.Initialized()
}

func (tm *SimTickManager) Clear(index int) {
	tm.ticks.Delete(&SimTick{TickIndex: index})
}

func compressTick(tick, tickSpacing int) int {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// GetNextInitializedTick searches at most one bitmap word away, the way the
// pool's tick bitmap does, so swap steps stay bounded.
func (tm *SimTickManager) GetNextInitializedTick(tick, tickSpacing int, lte bool) (int, bool, error) {
	if tickSpacing <= 0 {
		return 0, false, errors.New("tick spacing must be positive")
	}
	compressed := compressTick(tick, tickSpacing)
	if lte {
		minimum := ((compressed >> 8) << 8) * tickSpacing
		var found *SimTick
		tm.ticks.DescendLessOrEqual(&SimTick{TickIndex: tick}, func(t *SimTick) bool {
			found = t
			return false
		})
		if found == nil || found.TickIndex < minimum {
			return minimum, false, nil
		}
		return found.TickIndex, true, nil
	}
	maximum := ((((compressed + 1) >> 8) + 1) << 8 - 1) * tickSpacing
	var found *SimTick
	tm.ticks.AscendGreaterOrEqual(&SimTick{TickIndex: tick + 1}, func(t *SimTick) bool {
		found = t
		return false
	})
	if found == nil || found.TickIndex > maximum {
		return maximum, false, nil
	}
	return found.TickIndex, true, nil
}

func (tm *SimTickManager) MarshalJSON() ([]byte, error) {
	ticks := make([]*SimTick, 0, tm.ticks.Len())
	tm.ticks.Ascend(func(t *SimTick) bool {
		ticks = append(ticks, t)
		return true
	})
	return json.Marshal(ticks)
}

func (tm *SimTickManager) UnmarshalJSON(data []byte) error {
	var ticks []*SimTick
	if err := json.Unmarshal(data, &ticks); err != nil {
		return err
	}
	tm.ticks = btree.NewG(tickRegistryDegree, simTickLess)
	for _, t := range ticks {
		if t.FeeGrowthOutside0X128 == nil {
			t.FeeGrowthOutside0X128 = new(uint256.Int)
		}
		if t.FeeGrowthOutside1X128 == nil {
			t.FeeGrowthOutside1X128 = new(uint256.Int)
		}
		tm.ticks.ReplaceOrInsert(t)
	}
	return nil
}
