package vtoken_ledger

import "github.com/shopspring/decimal"

// GetAmount1Delta is signed: positive liquidity rounds up (owed to the pool),
// negative liquidity rounds down and returns a negative amount.
func GetAmount1Delta(
	sqrtRatioAX96 decimal.Decimal,
	sqrtRatioBX96 decimal.Decimal,
	liquidity decimal.Decimal,
) (decimal.Decimal, error) {
	if liquidity.IsNegative() {
		r, err := GetAmount1DeltaWithRoundUp(sqrtRatioAX96, sqrtRatioBX96, liquidity.Neg(), false)
		if err != nil {
			return ZERO, err
		}
		return r.Neg(), nil
	}
	return GetAmount1DeltaWithRoundUp(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

func GetAmount0Delta(
	sqrtRatioAX96 decimal.Decimal,
	sqrtRatioBX96 decimal.Decimal,
	liquidity decimal.Decimal,
) (decimal.Decimal, error) {
	if liquidity.IsNegative() {
		r, err := GetAmount0DeltaWithRoundUp(sqrtRatioAX96, sqrtRatioBX96, liquidity.Neg(), false)
		if err != nil {
			return ZERO, err
		}
		return r.Neg(), nil
	}
	return GetAmount0DeltaWithRoundUp(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

func GetAmount1DeltaWithRoundUp(
	sqrtRatioAX96 decimal.Decimal,
	sqrtRatioBX96 decimal.Decimal,
	liquidity decimal.Decimal,
	roundUp bool) (decimal.Decimal, error) {
	if sqrtRatioAX96.GreaterThan(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := sqrtRatioBX96.Sub(sqrtRatioAX96)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDivRoundingDown(liquidity, diff, Q96)
}

func GetAmount0DeltaWithRoundUp(
	sqrtRatioAX96 decimal.Decimal,
	sqrtRatioBX96 decimal.Decimal,
	liquidity decimal.Decimal,
	roundUp bool) (decimal.Decimal, error) {
	if sqrtRatioAX96.GreaterThan(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if !sqrtRatioAX96.IsPositive() {
		return ZERO, INVALID_TICK
	}
	numerator1 := liquidity.Mul(Q96)
	numerator2 := sqrtRatioBX96.Sub(sqrtRatioAX96)
	if roundUp {
		tmp, err := MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return ZERO, err
		}
		return MulDivRoundingUp(tmp, ONE, sqrtRatioAX96)
	}
	tmp, err := MulDivRoundingDown(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return ZERO, err
	}
	return MulDivRoundingDown(tmp, ONE, sqrtRatioAX96)
}

// GetAmountsForLiquidity returns the principal a range holds at sqrtPriceX96.
// Amounts carry the sign of liquidity.
func GetAmountsForLiquidity(sqrtPriceX96 decimal.Decimal, tickLower, tickUpper int, liquidity decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	sqrtLower, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return ZERO, ZERO, err
	}
	sqrtUpper, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return ZERO, ZERO, err
	}
	amount0, amount1 := ZERO, ZERO
	if sqrtPriceX96.LessThanOrEqual(sqrtLower) {
		amount0, err = GetAmount0Delta(sqrtLower, sqrtUpper, liquidity)
	} else if sqrtPriceX96.LessThan(sqrtUpper) {
		amount0, err = GetAmount0Delta(sqrtPriceX96, sqrtUpper, liquidity)
		if err != nil {
			return ZERO, ZERO, err
		}
		amount1, err = GetAmount1Delta(sqrtLower, sqrtPriceX96, liquidity)
	} else {
		amount1, err = GetAmount1Delta(sqrtLower, sqrtUpper, liquidity)
	}
	if err != nil {
		return ZERO, ZERO, err
	}
	return amount0, amount1, nil
}
