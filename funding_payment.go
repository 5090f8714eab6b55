package vtoken_ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FundingState is the market wide funding accumulator.
// SumB is the net trader position per unit of liquidity, SumA the funding rate
// integrated over time and SumFp the integral of SumB against SumA.
type FundingState struct {
	SumAX128      decimal.Decimal `json:"sumAX128"`
	SumBX128      decimal.Decimal `json:"sumBX128"`
	SumFpX128     decimal.Decimal `json:"sumFpX128"`
	TimestampLast uint64          `json:"timestampLast"`
}

func NewFundingState(timestamp uint64) *FundingState {
	return &FundingState{
		SumAX128:      ZERO,
		SumBX128:      ZERO,
		SumFpX128:     ZERO,
		TimestampLast: timestamp,
	}
}

func (f *FundingState) Clone() *FundingState {
	return &FundingState{
		SumAX128:      f.SumAX128,
		SumBX128:      f.SumBX128,
		SumFpX128:     f.SumFpX128,
		TimestampLast: f.TimestampLast,
	}
}

// NextAX128 is the funding rate accrued between two timestamps.
func NextAX128(
	timestampLast uint64,
	timestamp uint64,
	realPriceX128 decimal.Decimal,
	virtualPriceX128 decimal.Decimal,
	timeHorizon uint64,
) (decimal.Decimal, error) {
	if timestamp < timestampLast {
		return ZERO, INVALID_TIMESTAMP
	}
	if timeHorizon == 0 {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	diff, err := SignedSub(realPriceX128, virtualPriceX128)
	if err != nil {
		return ZERO, err
	}
	return MulDiv(
		diff,
		decimal.NewFromInt(int64(timestamp-timestampLast)),
		decimal.NewFromInt(int64(timeHorizon)),
	)
}

// RegisterTrade accrues funding up to timestamp and then books tokenAmount,
// the vToken amount traders received, against the active liquidity.
// Funding for the elapsed period is charged on the net position that was
// held before this trade. Nothing is written when an error is returned.
func (f *FundingState) RegisterTrade(
	tokenAmount decimal.Decimal,
	liquidity decimal.Decimal,
	timestamp uint64,
	realPriceX128 decimal.Decimal,
	virtualPriceX128 decimal.Decimal,
	timeHorizon uint64,
) error {
	if timestamp < f.TimestampLast {
		return fmt.Errorf("register trade at %d, last %d: %w", timestamp, f.TimestampLast, INVALID_TIMESTAMP)
	}
	a, err := NextAX128(f.TimestampLast, timestamp, realPriceX128, virtualPriceX128, timeHorizon)
	if err != nil {
		return err
	}
	fpDelta, err := MulDivRoundingDown(a, f.SumBX128, Q128)
	if err != nil {
		return err
	}
	sumFp, err := SignedAdd(f.SumFpX128, fpDelta)
	if err != nil {
		return err
	}
	sumA, err := SignedAdd(f.SumAX128, a)
	if err != nil {
		return err
	}
	sumB := f.SumBX128
	if liquidity.IsPositive() {
		bDelta, err := MulDiv(tokenAmount, Q128, liquidity)
		if err != nil {
			return err
		}
		sumB, err = SignedAdd(sumB, bDelta)
		if err != nil {
			return err
		}
	}
	f.SumFpX128 = sumFp
	f.SumAX128 = sumA
	f.SumBX128 = sumB
	f.TimestampLast = timestamp
	return nil
}

// Accrue moves the funding clock forward without a trade.
func (f *FundingState) Accrue(
	timestamp uint64,
	realPriceX128 decimal.Decimal,
	virtualPriceX128 decimal.Decimal,
	timeHorizon uint64,
) error {
	return f.RegisterTrade(ZERO, ZERO, timestamp, realPriceX128, virtualPriceX128, timeHorizon)
}

// ExtrapolatedSumFpX128 brings a SumFp snapshot taken at sumALast forward to
// sumAGlobal assuming sumB stayed constant in between.
func ExtrapolatedSumFpX128(
	sumALastX128 decimal.Decimal,
	sumBX128 decimal.Decimal,
	sumFpX128 decimal.Decimal,
	sumAGlobalX128 decimal.Decimal,
) (decimal.Decimal, error) {
	da, err := SignedSub(sumAGlobalX128, sumALastX128)
	if err != nil {
		return ZERO, err
	}
	delta, err := MulDivRoundingDown(sumBX128, da, Q128)
	if err != nil {
		return ZERO, err
	}
	return SignedAdd(sumFpX128, delta)
}

// BillToken is the funding credit of a token position held since sumALast.
// A negative result is a payment.
func BillToken(netTraderPosition, sumALastX128, sumAX128 decimal.Decimal) (decimal.Decimal, error) {
	da, err := SignedSub(sumAX128, sumALastX128)
	if err != nil {
		return ZERO, err
	}
	return MulDivRoundingDown(netTraderPosition, da, Q128)
}

// BillLiquidity is the funding credit of a range for the net position its
// liquidity took on since the last snapshot.
func BillLiquidity(
	liquidity decimal.Decimal,
	sumALastX128 decimal.Decimal,
	sumBInsideLastX128 decimal.Decimal,
	sumFpInsideLastX128 decimal.Decimal,
	sumAX128 decimal.Decimal,
	sumFpInsideX128 decimal.Decimal,
) (decimal.Decimal, error) {
	ext, err := ExtrapolatedSumFpX128(sumALastX128, sumBInsideLastX128, sumFpInsideLastX128, sumAX128)
	if err != nil {
		return ZERO, err
	}
	growth, err := SignedSub(sumFpInsideX128, ext)
	if err != nil {
		return ZERO, err
	}
	return MulDivRoundingDown(growth.Neg(), liquidity, Q128)
}

// NetPositionFromLiquidity is the vToken position a range took on while
// traders moved sumBInside.
func NetPositionFromLiquidity(liquidity, sumBInsideLastX128, sumBInsideX128 decimal.Decimal) (decimal.Decimal, error) {
	db, err := SignedSub(sumBInsideX128, sumBInsideLastX128)
	if err != nil {
		return ZERO, err
	}
	return MulDivRoundingDown(db.Neg(), liquidity, Q128)
}
