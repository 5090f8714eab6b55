package vtoken_ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func valueAtPrice(amount, priceX128 decimal.Decimal) (decimal.Decimal, error) {
	return MulDivRoundingDown(amount, priceX128, Q128)
}

// GetAccountMarketValue values the account at TWAP prices: deposits, token
// balances, range principal and everything accrued but not yet settled.
func (a *Account) GetAccountMarketValue(markets Markets, constants Constants) (decimal.Decimal, error) {
	value := ZERO
	for _, token := range sortedDepositTokens(a.Deposits) {
		amount := a.Deposits[token]
		if token == constants.VBase {
			value = value.Add(amount)
			continue
		}
		w, err := markets.Wrapper(token)
		if err != nil {
			return ZERO, err
		}
		price, err := w.TwapPriceX128()
		if err != nil {
			return ZERO, err
		}
		v, err := valueAtPrice(amount, price)
		if err != nil {
			return ZERO, err
		}
		value = value.Add(v)
	}
	if base, ok := a.TokenPositions[constants.VBase]; ok {
		value = value.Add(base.Balance)
	}
	for _, token := range a.activeTokens(constants.VBase) {
		v, err := a.marketValueOf(markets, token)
		if err != nil {
			return ZERO, err
		}
		value = value.Add(v)
	}
	return checkInt256(value)
}

func (a *Account) marketValueOf(markets Markets, token common.Address) (decimal.Decimal, error) {
	w, err := markets.Wrapper(token)
	if err != nil {
		return ZERO, err
	}
	price, err := w.TwapPriceX128()
	if err != nil {
		return ZERO, err
	}
	value := ZERO
	if pos, ok := a.TokenPositions[token]; ok {
		v, err := valueAtPrice(pos.Balance, price)
		if err != nil {
			return ZERO, err
		}
		funding, err := pos.UnrealizedFunding(w.Funding.SumAX128)
		if err != nil {
			return ZERO, err
		}
		value = value.Add(v).Add(funding)
	}
	set, ok := a.LiquidityPositions[token]
	if !ok || set.Len() == 0 {
		return value, nil
	}
	sqrtPriceX96, err := w.TwapSqrtPriceX96()
	if err != nil {
		return ZERO, err
	}
	for _, lp := range set.Sorted() {
		vTokenAmount, vBaseAmount, err := w.RangeAmountsAt(sqrtPriceX96, lp.TickLower, lp.TickUpper, lp.Liquidity)
		if err != nil {
			return ZERO, err
		}
		v, err := valueAtPrice(vTokenAmount, price)
		if err != nil {
			return ZERO, err
		}
		values, err := w.GetValuesInside(lp.TickLower, lp.TickUpper)
		if err != nil {
			return ZERO, err
		}
		pending, err := lp.Pending(values)
		if err != nil {
			return ZERO, err
		}
		value = value.Add(v).Add(vBaseAmount).Add(pending.VBaseIncrease)
	}
	return value, nil
}

// GetRequiredMargin sums, per market, the larger of the long and short side
// exposure at the TWAP price times the margin ratio. The long side assumes
// price falls through every range, the short side that it rises through all
// of them. Any exposure requires at least MinRequiredMargin.
func (a *Account) GetRequiredMargin(markets Markets, isInitial bool, constants Constants) (decimal.Decimal, error) {
	required := ZERO
	exposed := false
	for _, token := range a.activeTokens(constants.VBase) {
		w, err := markets.Wrapper(token)
		if err != nil {
			return ZERO, err
		}
		balance := ZERO
		if pos, ok := a.TokenPositions[token]; ok {
			balance = pos.Balance
		}
		longSide := balance
		if set, ok := a.LiquidityPositions[token]; ok {
			for _, lp := range set.Sorted() {
				full, err := w.RangeVTokenExposure(lp.TickLower, lp.TickUpper, lp.Liquidity)
				if err != nil {
					return ZERO, err
				}
				longSide = longSide.Add(full)
				exposed = true
			}
		}
		exposure := decimal.Max(longSide.Abs(), balance.Abs())
		if exposure.IsZero() {
			continue
		}
		exposed = true
		price, err := w.TwapPriceX128()
		if err != nil {
			return ZERO, err
		}
		notional, err := MulDivRoundingUp(exposure, price, Q128)
		if err != nil {
			return ZERO, err
		}
		ratio := w.Config.MaintenanceMarginRatioBps
		if isInitial {
			ratio = w.Config.InitialMarginRatioBps
		}
		margin, err := MulDivRoundingUp(notional, decimal.NewFromInt(int64(ratio)), BPS_DENOMINATOR)
		if err != nil {
			return ZERO, err
		}
		required = required.Add(margin)
	}
	if exposed && required.LessThan(constants.MinRequiredMargin) {
		required = constants.MinRequiredMargin
	}
	return required, nil
}

// CheckInitialMargin fails with INSUFFICIENT_MARGIN when the account value
// does not cover the initial requirement.
func (a *Account) CheckInitialMargin(markets Markets, constants Constants) error {
	value, err := a.GetAccountMarketValue(markets, constants)
	if err != nil {
		return err
	}
	required, err := a.GetRequiredMargin(markets, true, constants)
	if err != nil {
		return err
	}
	if value.LessThan(required) {
		return fmt.Errorf("account value %s below initial margin %s: %w", value, required, INSUFFICIENT_MARGIN)
	}
	return nil
}

// CheckLiquidatable fails with NOT_LIQUIDATABLE while the account value
// covers the maintenance requirement.
func (a *Account) CheckLiquidatable(markets Markets, constants Constants) error {
	value, err := a.GetAccountMarketValue(markets, constants)
	if err != nil {
		return err
	}
	required, err := a.GetRequiredMargin(markets, false, constants)
	if err != nil {
		return err
	}
	if !value.LessThan(required) {
		return fmt.Errorf("account value %s covers maintenance margin %s: %w", value, required, NOT_LIQUIDATABLE)
	}
	return nil
}

func sortedDepositTokens(deposits map[common.Address]decimal.Decimal) []common.Address {
	tokens := make([]common.Address, 0, len(deposits))
	for t := range deposits {
		tokens = append(tokens, t)
	}
	sortAddresses(tokens)
	return tokens
}
