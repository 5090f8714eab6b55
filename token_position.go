package vtoken_ledger

import "github.com/shopspring/decimal"

// TokenPosition is an account's holding of one virtual token. For vBase
// only Balance is used.
type TokenPosition struct {
	Balance           decimal.Decimal `json:"balance"`
	NetTraderPosition decimal.Decimal `json:"netTraderPosition"`
	SumALastX128      decimal.Decimal `json:"sumALastX128"`
}

func NewTokenPosition() *TokenPosition {
	return &TokenPosition{
		Balance:           ZERO,
		NetTraderPosition: ZERO,
		SumALastX128:      ZERO,
	}
}

func (t *TokenPosition) Clone() *TokenPosition {
	return &TokenPosition{
		Balance:           t.Balance,
		NetTraderPosition: t.NetTraderPosition,
		SumALastX128:      t.SumALastX128,
	}
}

func (t *TokenPosition) IsEmpty() bool {
	return t.Balance.IsZero() && t.NetTraderPosition.IsZero()
}

// UnrealizedFunding is the funding owed to the position up to sumAX128.
func (t *TokenPosition) UnrealizedFunding(sumAX128 decimal.Decimal) (decimal.Decimal, error) {
	return BillToken(t.NetTraderPosition, t.SumALastX128, sumAX128)
}

// SettleFunding returns the funding credit and moves the snapshot to sumAX128.
func (t *TokenPosition) SettleFunding(sumAX128 decimal.Decimal) (decimal.Decimal, error) {
	credit, err := t.UnrealizedFunding(sumAX128)
	if err != nil {
		return ZERO, err
	}
	t.SumALastX128 = sumAX128
	return credit, nil
}
