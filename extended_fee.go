package vtoken_ledger

import "github.com/shopspring/decimal"

type ExtendedFeeState struct {
	SumExFeeGlobalX128 decimal.Decimal `json:"sumExFeeGlobalX128"`
}

func NewExtendedFeeState() *ExtendedFeeState {
	return &ExtendedFeeState{SumExFeeGlobalX128: ZERO}
}

func (s *ExtendedFeeState) Clone() *ExtendedFeeState {
	return &ExtendedFeeState{SumExFeeGlobalX128: s.SumExFeeGlobalX128}
}

// Accrue spreads fee over the liquidity that was active for the step.
// Without liquidity there is nobody to pay and the fee is dropped.
func (s *ExtendedFeeState) Accrue(fee, liquidity decimal.Decimal) error {
	if !liquidity.IsPositive() || fee.IsZero() {
		return nil
	}
	if fee.IsNegative() {
		return INVALID_AMOUNT
	}
	growth, err := MulDiv(fee, Q128, liquidity)
	if err != nil {
		return err
	}
	sum, err := SignedAdd(s.SumExFeeGlobalX128, growth)
	if err != nil {
		return err
	}
	s.SumExFeeGlobalX128 = sum
	return nil
}

// ExtendedFeeAmount charges feeBps of a base notional, rounding up.
func ExtendedFeeAmount(notional decimal.Decimal, feeBps uint32) (decimal.Decimal, error) {
	if feeBps == 0 {
		return ZERO, nil
	}
	return MulDivRoundingUp(notional.Abs(), decimal.NewFromInt(int64(feeBps)), BPS_DENOMINATOR)
}
