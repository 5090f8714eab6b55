package vtoken_ledger

import (
	"github.com/shopspring/decimal"
)

func LiquidityAddDelta(x decimal.Decimal, y decimal.Decimal) (decimal.Decimal, error) {
	if x.IsNegative() || x.GreaterThan(MaxUint128) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	if y.GreaterThan(MaxInt128) || y.LessThan(MinInt128) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	if y.IsNegative() {
		negy := y.Neg()
		if negy.GreaterThan(x) {
			return ZERO, INVALID_LIQUIDITY
		}
		return x.Sub(negy), nil
	}
	if x.Add(y).GreaterThan(MaxUint128) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	return x.Add(y), nil
}
