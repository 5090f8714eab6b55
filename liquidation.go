package vtoken_ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// LiquidationFees is the fee split of one liquidation. The liquidated account
// pays LiquidationFee + FixFee, KeeperFee and InsuranceFundFee add up to it.
type LiquidationFees struct {
	// set by the clearing house
	Id               string
	NotionalClosed   decimal.Decimal
	LiquidationFee   decimal.Decimal
	KeeperFee        decimal.Decimal
	InsuranceFundFee decimal.Decimal
}

func ComputeLiquidationFees(notionalClosed decimal.Decimal, params LiquidationParams) (LiquidationFees, error) {
	notional := notionalClosed.Abs()
	fee, err := MulDivRoundingDown(notional, decimal.NewFromInt(int64(params.LiquidationFeeFractionBps)), BPS_DENOMINATOR)
	if err != nil {
		return LiquidationFees{}, err
	}
	keeperShare, err := MulDivRoundingDown(
		fee,
		BPS_DENOMINATOR.Sub(decimal.NewFromInt(int64(params.InsuranceFundFeeShareBps))),
		BPS_DENOMINATOR,
	)
	if err != nil {
		return LiquidationFees{}, err
	}
	return LiquidationFees{
		NotionalClosed:   notional,
		LiquidationFee:   fee,
		KeeperFee:        keeperShare.Add(params.FixFee),
		InsuranceFundFee: fee.Sub(keeperShare),
	}, nil
}

// Total is what the liquidated account is charged.
func (f LiquidationFees) Total(params LiquidationParams) decimal.Decimal {
	return f.LiquidationFee.Add(params.FixFee)
}

func (a *Account) chargeLiquidation(notionalClosed decimal.Decimal, params LiquidationParams, constants Constants) (LiquidationFees, error) {
	fees, err := ComputeLiquidationFees(notionalClosed, params)
	if err != nil {
		return LiquidationFees{}, err
	}
	base := a.tokenPosition(constants.VBase)
	base.Balance = base.Balance.Sub(fees.Total(params))
	return fees, nil
}

// LiquidateLiquidityPositions closes every range of an account under its
// maintenance margin. The fee is charged on the principal value withdrawn.
func (a *Account) LiquidateLiquidityPositions(markets Markets, params LiquidationParams, constants Constants) (LiquidationFees, error) {
	var fees LiquidationFees
	err := a.atomically(markets, func() error {
		var err error
		fees, err = a.liquidateLiquidityPositions(markets, params, constants)
		return err
	})
	if err != nil {
		return LiquidationFees{}, err
	}
	return fees, nil
}

func (a *Account) liquidateLiquidityPositions(markets Markets, params LiquidationParams, constants Constants) (LiquidationFees, error) {
	if !a.hasLiquidityPositions() {
		return LiquidationFees{}, fmt.Errorf("no ranges to liquidate: %w", POSITION_NOT_FOUND)
	}
	if err := a.CheckLiquidatable(markets, constants); err != nil {
		return LiquidationFees{}, err
	}
	notional := ZERO
	for _, token := range a.activeTokens(constants.VBase) {
		set, ok := a.LiquidityPositions[token]
		if !ok {
			continue
		}
		w, err := markets.Wrapper(token)
		if err != nil {
			return LiquidationFees{}, err
		}
		price, err := w.TwapPriceX128()
		if err != nil {
			return LiquidationFees{}, err
		}
		sqrtPriceX96, err := w.TwapSqrtPriceX96()
		if err != nil {
			return LiquidationFees{}, err
		}
		for _, lp := range set.Sorted() {
			vTokenAmount, vBaseAmount, err := w.RangeAmountsAt(sqrtPriceX96, lp.TickLower, lp.TickUpper, lp.Liquidity)
			if err != nil {
				return LiquidationFees{}, err
			}
			v, err := valueAtPrice(vTokenAmount, price)
			if err != nil {
				return LiquidationFees{}, err
			}
			notional = notional.Add(v).Add(vBaseAmount)
		}
	}
	if err := a.closeAllLiquidity(markets, constants); err != nil {
		return LiquidationFees{}, err
	}
	return a.chargeLiquidation(notional, params, constants)
}

// LiquidateTokenPosition closes liquidationBps of a token position through
// the market. Ranges have to be liquidated first.
func (a *Account) LiquidateTokenPosition(
	markets Markets,
	token common.Address,
	liquidationBps uint32,
	params LiquidationParams,
	constants Constants,
) (LiquidationFees, error) {
	var fees LiquidationFees
	err := a.atomically(markets, func() error {
		var err error
		fees, err = a.liquidateTokenPosition(markets, token, liquidationBps, params, constants)
		return err
	})
	if err != nil {
		return LiquidationFees{}, err
	}
	return fees, nil
}

func (a *Account) liquidateTokenPosition(
	markets Markets,
	token common.Address,
	liquidationBps uint32,
	params LiquidationParams,
	constants Constants,
) (LiquidationFees, error) {
	if liquidationBps == 0 || liquidationBps > 10000 {
		return LiquidationFees{}, fmt.Errorf("liquidation bps %d: %w", liquidationBps, INVALID_AMOUNT)
	}
	if a.hasLiquidityPositions() {
		return LiquidationFees{}, LIQUIDITY_POSITIONS_EXIST
	}
	pos, ok := a.TokenPositions[token]
	if !ok || pos.Balance.IsZero() {
		return LiquidationFees{}, fmt.Errorf("token %s: %w", token, POSITION_NOT_FOUND)
	}
	if err := a.CheckLiquidatable(markets, constants); err != nil {
		return LiquidationFees{}, err
	}
	closeAmount, err := MulDiv(pos.Balance.Neg(), decimal.NewFromInt(int64(liquidationBps)), BPS_DENOMINATOR)
	if err != nil {
		return LiquidationFees{}, err
	}
	if closeAmount.IsZero() {
		return LiquidationFees{}, fmt.Errorf("nothing to close at %d bps: %w", liquidationBps, INVALID_AMOUNT)
	}
	res, err := a.swap(markets, token, closeAmount, false, constants)
	if err != nil {
		return LiquidationFees{}, err
	}
	return a.chargeLiquidation(res.VBaseDelta.Add(res.ExtendedFee), params, constants)
}
