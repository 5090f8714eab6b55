package vtoken_ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

type LimitOrderType uint8

const (
	LimitOrderNone LimitOrderType = iota
	LimitOrderLower
	LimitOrderUpper
)

func (t LimitOrderType) String() string {
	switch t {
	case LimitOrderLower:
		return "lower"
	case LimitOrderUpper:
		return "upper"
	default:
		return "none"
	}
}

func ParseLimitOrderType(s string) (LimitOrderType, error) {
	switch s {
	case "", "none", "0":
		return LimitOrderNone, nil
	case "lower", "1":
		return LimitOrderLower, nil
	case "upper", "2":
		return LimitOrderUpper, nil
	}
	return LimitOrderNone, fmt.Errorf("unknown limit order type %q", s)
}

// LiquidityPosition is a range position of one account in one market.
type LiquidityPosition struct {
	TickLower      int             `json:"tickLower"`
	TickUpper      int             `json:"tickUpper"`
	Liquidity      decimal.Decimal `json:"liquidity"`
	LimitOrderType LimitOrderType  `json:"limitOrderType"`

	SumALastX128                  decimal.Decimal `json:"sumALastX128"`
	SumBInsideLastX128            decimal.Decimal `json:"sumBInsideLastX128"`
	SumFpInsideLastX128           decimal.Decimal `json:"sumFpInsideLastX128"`
	LongsFeeGrowthInsideLastX128  *uint256.Int    `json:"longsFeeGrowthInsideLastX128"`
	ShortsFeeGrowthInsideLastX128 decimal.Decimal `json:"shortsFeeGrowthInsideLastX128"`
}

// BalanceAdjustments is what settling a range moves into the token positions.
type BalanceAdjustments struct {
	VBaseIncrease          decimal.Decimal
	TraderPositionIncrease decimal.Decimal
}

func NewLiquidityPosition(tickLower, tickUpper int) *LiquidityPosition {
	return &LiquidityPosition{
		TickLower:                     tickLower,
		TickUpper:                     tickUpper,
		Liquidity:                     ZERO,
		LimitOrderType:                LimitOrderNone,
		SumALastX128:                  ZERO,
		SumBInsideLastX128:            ZERO,
		SumFpInsideLastX128:           ZERO,
		LongsFeeGrowthInsideLastX128:  new(uint256.Int),
		ShortsFeeGrowthInsideLastX128: ZERO,
	}
}

func (p *LiquidityPosition) Clone() *LiquidityPosition {
	c := *p
	c.LongsFeeGrowthInsideLastX128 = new(uint256.Int).Set(p.LongsFeeGrowthInsideLastX128)
	return &c
}

// Snapshot records the inside values without settling anything.
func (p *LiquidityPosition) Snapshot(values ValuesInside) {
	p.SumALastX128 = values.SumAX128
	p.SumBInsideLastX128 = values.SumBInsideX128
	p.SumFpInsideLastX128 = values.SumFpInsideX128
	p.LongsFeeGrowthInsideLastX128 = new(uint256.Int).Set(values.LongsFeeGrowthInsideX128)
	p.ShortsFeeGrowthInsideLastX128 = values.ShortsFeeGrowthInsideX128
}

// Pending computes funding, fees and the net position taken on since the
// last snapshot, for the current liquidity.
func (p *LiquidityPosition) Pending(values ValuesInside) (BalanceAdjustments, error) {
	if p.Liquidity.IsZero() {
		return BalanceAdjustments{VBaseIncrease: ZERO, TraderPositionIncrease: ZERO}, nil
	}
	funding, err := BillLiquidity(
		p.Liquidity,
		p.SumALastX128,
		p.SumBInsideLastX128,
		p.SumFpInsideLastX128,
		values.SumAX128,
		values.SumFpInsideX128,
	)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	longsFee, err := MulDivUint256X128(
		Mod256Sub(values.LongsFeeGrowthInsideX128, p.LongsFeeGrowthInsideLastX128),
		p.Liquidity,
	)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	shortsGrowth, err := SignedSub(values.ShortsFeeGrowthInsideX128, p.ShortsFeeGrowthInsideLastX128)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	shortsFee, err := MulDivRoundingDown(shortsGrowth, p.Liquidity, Q128)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	netPosition, err := NetPositionFromLiquidity(p.Liquidity, p.SumBInsideLastX128, values.SumBInsideX128)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	return BalanceAdjustments{
		VBaseIncrease:          funding.Add(longsFee).Add(shortsFee),
		TraderPositionIncrease: netPosition,
	}, nil
}

// Update settles everything pending and snapshots values.
func (p *LiquidityPosition) Update(values ValuesInside) (BalanceAdjustments, error) {
	adj, err := p.Pending(values)
	if err != nil {
		return BalanceAdjustments{}, err
	}
	p.Snapshot(values)
	return adj, nil
}

// CheckLimitOrderRemoval allows a keeper style removal only once price has
// left the range on the side the order was placed for.
func (p *LiquidityPosition) CheckLimitOrderRemoval(currentTick int) error {
	switch p.LimitOrderType {
	case LimitOrderLower:
		if currentTick < p.TickLower {
			return nil
		}
	case LimitOrderUpper:
		if currentTick >= p.TickUpper {
			return nil
		}
	}
	return fmt.Errorf("%s order [%d, %d) at tick %d: %w",
		p.LimitOrderType, p.TickLower, p.TickUpper, currentTick, INELIGIBLE_LIMIT_ORDER_REMOVAL)
}

func GetPositionKey(tickLower int, tickUpper int) string {
	return fmt.Sprintf("%d_%d", tickLower, tickUpper)
}

// LiquidityPositionSet holds the ranges of one account in one market.
type LiquidityPositionSet struct {
	Positions map[string]*LiquidityPosition
}

func NewLiquidityPositionSet() *LiquidityPositionSet {
	return &LiquidityPositionSet{
		Positions: map[string]*LiquidityPosition{},
	}
}

func (s *LiquidityPositionSet) Clone() *LiquidityPositionSet {
	newS := NewLiquidityPositionSet()
	for k, position := range s.Positions {
		newS.Positions[k] = position.Clone()
	}
	return newS
}

func (s *LiquidityPositionSet) Len() int {
	return len(s.Positions)
}

func (s *LiquidityPositionSet) Get(tickLower, tickUpper int) (*LiquidityPosition, bool) {
	p, ok := s.Positions[GetPositionKey(tickLower, tickUpper)]
	return p, ok
}

func (s *LiquidityPositionSet) GetPositionAndInitIfAbsent(tickLower, tickUpper int) *LiquidityPosition {
	key := GetPositionKey(tickLower, tickUpper)
	if p, ok := s.Positions[key]; ok {
		return p
	}
	p := NewLiquidityPosition(tickLower, tickUpper)
	s.Positions[key] = p
	return p
}

func (s *LiquidityPositionSet) Clear(tickLower, tickUpper int) {
	delete(s.Positions, GetPositionKey(tickLower, tickUpper))
}

// Sorted lists the ranges by lower then upper tick.
func (s *LiquidityPositionSet) Sorted() []*LiquidityPosition {
	result := make([]*LiquidityPosition, 0, len(s.Positions))
	for _, p := range s.Positions {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TickLower != result[j].TickLower {
			return result[i].TickLower < result[j].TickLower
		}
		return result[i].TickUpper < result[j].TickUpper
	})
	return result
}

// Compact drops ranges without liquidity.
func (s *LiquidityPositionSet) Compact() {
	for k, p := range s.Positions {
		if p.Liquidity.IsZero() {
			delete(s.Positions, k)
		}
	}
}

func (s *LiquidityPositionSet) GormDataType() string {
	return "LONGTEXT"
}

func (s *LiquidityPositionSet) Scan(value interface{}) error {
	var err error
	switch v := value.(type) {
	case []byte:
		err = json.Unmarshal(v, s)
	case string:
		err = json.Unmarshal([]byte(v), s)
	case nil:
		return nil
	default:
		err = errors.New(fmt.Sprint("Failed to unmarshal LiquidityPositionSet value:", value))
	}
	return err
}

func (s *LiquidityPositionSet) Value() (driver.Value, error) {
	bs, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}
