package vtoken_ledger

import (
	"math/big"

	"github.com/daoleno/uniswapv3-sdk/utils"
	"github.com/shopspring/decimal"
)

func GetSqrtRatioAtTick(tick int) (decimal.Decimal, error) {
	if tick < MIN_TICK || tick > MAX_TICK {
		return ZERO, INVALID_TICK
	}
	r, err := utils.GetSqrtRatioAtTick(tick)
	if err != nil {
		return ZERO, err
	}
	return decimal.NewFromBigInt(r, 0), nil
}

func GetTickAtSqrtRatio(sqrtRatioX96 decimal.Decimal) (int, error) {
	if sqrtRatioX96.LessThan(MIN_SQRT_RATIO) || !sqrtRatioX96.LessThan(MAX_SQRT_RATIO) {
		return 0, INVALID_TICK
	}
	return utils.GetTickAtSqrtRatio(sqrtRatioX96.BigInt())
}

// TickSpacingToMaxLiquidityPerTick truncates the tick bounds toward zero like
// the pool contract.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int) decimal.Decimal {
	minTick := (MIN_TICK / tickSpacing) * tickSpacing
	maxTick := (MAX_TICK / tickSpacing) * tickSpacing
	numTicks := int64((maxTick-minTick)/tickSpacing) + 1
	return MaxUint128.Div(decimal.NewFromInt(numTicks)).Floor()
}

// SqrtPriceX96ToPriceX128 converts the pool price into vBase per vToken in X128.
func SqrtPriceX96ToPriceX128(sqrtPriceX96 decimal.Decimal, isVTokenToken0 bool) (decimal.Decimal, error) {
	if !sqrtPriceX96.IsPositive() {
		return ZERO, INVALID_TICK
	}
	if isVTokenToken0 {
		return MulDiv(sqrtPriceX96, sqrtPriceX96, Q64)
	}
	return MulDiv(Q192, Q128, sqrtPriceX96.Mul(sqrtPriceX96))
}

func PriceX128ToSqrtPriceX96(priceX128 decimal.Decimal, isVTokenToken0 bool) (decimal.Decimal, error) {
	if !priceX128.IsPositive() {
		return ZERO, INVALID_AMOUNT
	}
	var radicand *big.Int
	if isVTokenToken0 {
		radicand = priceX128.Mul(Q64).BigInt()
	} else {
		radicand = Q192.Mul(Q128).BigInt()
		radicand.Quo(radicand, priceX128.BigInt())
	}
	return decimal.NewFromBigInt(new(big.Int).Sqrt(radicand), 0), nil
}

func TickToPriceX128(tick int, isVTokenToken0 bool) (decimal.Decimal, error) {
	sqrtPriceX96, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return ZERO, err
	}
	return SqrtPriceX96ToPriceX128(sqrtPriceX96, isVTokenToken0)
}
