package vtoken_ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// TickAccumulator holds the growth recorded on the far side of a tick.
type TickAccumulator struct {
	TickIndex           int             `json:"tickIndex"`
	SumALastX128        decimal.Decimal `json:"sumALastX128"`
	SumBOutsideX128     decimal.Decimal `json:"sumBOutsideX128"`
	SumFpOutsideX128    decimal.Decimal `json:"sumFpOutsideX128"`
	SumExFeeOutsideX128 decimal.Decimal `json:"sumExFeeOutsideX128"`
}

func NewTickAccumulator(index int) TickAccumulator {
	return TickAccumulator{
		TickIndex:           index,
		SumALastX128:        ZERO,
		SumBOutsideX128:     ZERO,
		SumFpOutsideX128:    ZERO,
		SumExFeeOutsideX128: ZERO,
	}
}

// ExtrapolatedSumFpOutsideX128 is SumFpOutside carried forward to sumAX128.
func (t TickAccumulator) ExtrapolatedSumFpOutsideX128(sumAX128 decimal.Decimal) (decimal.Decimal, error) {
	return ExtrapolatedSumFpX128(t.SumALastX128, t.SumBOutsideX128, t.SumFpOutsideX128, sumAX128)
}

const tickRegistryDegree = 16

func tickLess(a, b *TickAccumulator) bool {
	return a.TickIndex < b.TickIndex
}

// TickRegistry is the sparse, ordered set of crossed ticks of one market.
// Entries appear on first cross and are never removed.
type TickRegistry struct {
	ticks *btree.BTreeG[*TickAccumulator]
}

func NewTickRegistry() *TickRegistry {
	return &TickRegistry{ticks: btree.NewG(tickRegistryDegree, tickLess)}
}

// Get returns a copy of the tick's record, zero valued if never crossed.
func (r *TickRegistry) Get(tick int) TickAccumulator {
	if t, ok := r.ticks.Get(&TickAccumulator{TickIndex: tick}); ok {
		return *t
	}
	return NewTickAccumulator(tick)
}

func (r *TickRegistry) Has(tick int) bool {
	return r.ticks.Has(&TickAccumulator{TickIndex: tick})
}

func (r *TickRegistry) Set(acc TickAccumulator) error {
	if acc.TickIndex < MIN_TICK || acc.TickIndex > MAX_TICK {
		return INVALID_TICK
	}
	r.ticks.ReplaceOrInsert(&acc)
	return nil
}

func (r *TickRegistry) Len() int {
	return r.ticks.Len()
}

// Ascend visits every recorded tick in index order until fn returns false.
func (r *TickRegistry) Ascend(fn func(TickAccumulator) bool) {
	r.ticks.Ascend(func(t *TickAccumulator) bool {
		return fn(*t)
	})
}

// Cross flips the tick's outside values against the current globals. On a
// first cross the record becomes a snapshot of the globals.
func (r *TickRegistry) Cross(tick int, fp *FundingState, sumExFeeGlobalX128 decimal.Decimal) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return INVALID_TICK
	}
	old := r.Get(tick)
	extFp, err := old.ExtrapolatedSumFpOutsideX128(fp.SumAX128)
	if err != nil {
		return err
	}
	fpOutside, err := SignedSub(fp.SumFpX128, extFp)
	if err != nil {
		return err
	}
	bOutside, err := SignedSub(fp.SumBX128, old.SumBOutsideX128)
	if err != nil {
		return err
	}
	exFeeOutside, err := SignedSub(sumExFeeGlobalX128, old.SumExFeeOutsideX128)
	if err != nil {
		return err
	}
	r.ticks.ReplaceOrInsert(&TickAccumulator{
		TickIndex:           tick,
		SumALastX128:        fp.SumAX128,
		SumBOutsideX128:     bOutside,
		SumFpOutsideX128:    fpOutside,
		SumExFeeOutsideX128: exFeeOutside,
	})
	return nil
}

// Initialize resets a tick the pool is about to initialize, so records left
// behind while the tick was inactive are not reused. Growth so far is put
// below the tick when it is at or under tickCurrent, as the pool does.
func (r *TickRegistry) Initialize(tick, tickCurrent int, fp *FundingState, sumExFeeGlobalX128 decimal.Decimal) error {
	acc := NewTickAccumulator(tick)
	acc.SumALastX128 = fp.SumAX128
	if tick <= tickCurrent {
		acc.SumBOutsideX128 = fp.SumBX128
		acc.SumFpOutsideX128 = fp.SumFpX128
		acc.SumExFeeOutsideX128 = sumExFeeGlobalX128
	}
	return r.Set(acc)
}

func (r *TickRegistry) Clone() *TickRegistry {
	newR := NewTickRegistry()
	r.ticks.Ascend(func(t *TickAccumulator) bool {
		c := *t
		newR.ticks.ReplaceOrInsert(&c)
		return true
	})
	return newR
}

func (r *TickRegistry) MarshalJSON() ([]byte, error) {
	ticks := make([]TickAccumulator, 0, r.Len())
	r.Ascend(func(t TickAccumulator) bool {
		ticks = append(ticks, t)
		return true
	})
	return json.Marshal(ticks)
}

func (r *TickRegistry) UnmarshalJSON(data []byte) error {
	var ticks []TickAccumulator
	if err := json.Unmarshal(data, &ticks); err != nil {
		return err
	}
	r.ticks = btree.NewG(tickRegistryDegree, tickLess)
	for _, t := range ticks {
		if err := r.Set(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *TickRegistry) GormDataType() string {
	return "LONGTEXT"
}

func (r *TickRegistry) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	case nil:
		return nil
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal TickRegistry value:", value))
	}
}

func (r *TickRegistry) Value() (driver.Value, error) {
	bs, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}
