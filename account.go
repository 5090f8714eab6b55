package vtoken_ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Account is the ledger of one trader: collateral deposits, token positions
// (vBase included) and range positions per market.
type Account struct {
	Id                 string                                   `json:"id"`
	Owner              common.Address                           `json:"owner"`
	Deposits           map[common.Address]decimal.Decimal       `json:"deposits"`
	TokenPositions     map[common.Address]*TokenPosition        `json:"tokenPositions"`
	LiquidityPositions map[common.Address]*LiquidityPositionSet `json:"liquidityPositions"`
}

func NewAccount(id string, owner common.Address) *Account {
	return &Account{
		Id:                 id,
		Owner:              owner,
		Deposits:           map[common.Address]decimal.Decimal{},
		TokenPositions:     map[common.Address]*TokenPosition{},
		LiquidityPositions: map[common.Address]*LiquidityPositionSet{},
	}
}

func (a *Account) Clone() *Account {
	c := NewAccount(a.Id, a.Owner)
	for t, d := range a.Deposits {
		c.Deposits[t] = d
	}
	for t, p := range a.TokenPositions {
		c.TokenPositions[t] = p.Clone()
	}
	for t, s := range a.LiquidityPositions {
		c.LiquidityPositions[t] = s.Clone()
	}
	return c
}

func (a *Account) tokenPosition(token common.Address) *TokenPosition {
	if p, ok := a.TokenPositions[token]; ok {
		return p
	}
	p := NewTokenPosition()
	a.TokenPositions[token] = p
	return p
}

func (a *Account) liquidityPositionSet(token common.Address) *LiquidityPositionSet {
	if s, ok := a.LiquidityPositions[token]; ok {
		return s
	}
	s := NewLiquidityPositionSet()
	a.LiquidityPositions[token] = s
	return s
}

func (a *Account) hasLiquidityPositions() bool {
	for _, s := range a.LiquidityPositions {
		if s.Len() > 0 {
			return true
		}
	}
	return false
}

// activeTokens lists, in address order, every vToken the account has a
// position or range in.
func (a *Account) activeTokens(vBase common.Address) []common.Address {
	seen := map[common.Address]bool{}
	var tokens []common.Address
	for t := range a.TokenPositions {
		if t != vBase && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	for t, s := range a.LiquidityPositions {
		if t != vBase && !seen[t] && s.Len() > 0 {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	sortAddresses(tokens)
	return tokens
}

// atomically runs fn and puts the account and every market back in place
// when it fails.
func (a *Account) atomically(markets Markets, fn func() error) error {
	snapshot, err := snapshotMarkets(markets)
	if err != nil {
		return err
	}
	backup := a.Clone()
	if err := fn(); err != nil {
		*a = *backup
		if rerr := snapshot.restore(); rerr != nil {
			return fmt.Errorf("%w (%v)", err, rerr)
		}
		return err
	}
	return nil
}

func (a *Account) vTokenWrapper(markets Markets, token common.Address, constants Constants) (*VPoolWrapper, error) {
	if token == constants.VBase {
		return nil, fmt.Errorf("vbase has no market: %w", UNSUPPORTED_TOKEN)
	}
	return markets.Wrapper(token)
}

func (a *Account) AddMargin(token common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return INVALID_AMOUNT
	}
	a.Deposits[token] = a.Deposits[token].Add(amount)
	return nil
}

// RemoveMargin withdraws collateral as long as the initial margin still holds.
func (a *Account) RemoveMargin(markets Markets, token common.Address, amount decimal.Decimal, constants Constants) error {
	if !amount.IsPositive() {
		return INVALID_AMOUNT
	}
	balance := a.Deposits[token].Sub(amount)
	if balance.IsNegative() {
		return fmt.Errorf("deposit %s of %s below %s: %w", a.Deposits[token], token, amount, INSUFFICIENT_MARGIN)
	}
	previous := a.Deposits[token]
	a.Deposits[token] = balance
	if balance.IsZero() {
		delete(a.Deposits, token)
	}
	if err := a.CheckInitialMargin(markets, constants); err != nil {
		a.Deposits[token] = previous
		return err
	}
	return nil
}

// settleTokenFunding credits funding of a token position up to the market's
// current sumA into vBase.
func (a *Account) settleTokenFunding(w *VPoolWrapper, token common.Address, constants Constants) error {
	credit, err := a.tokenPosition(token).SettleFunding(w.Funding.SumAX128)
	if err != nil {
		return err
	}
	base := a.tokenPosition(constants.VBase)
	base.Balance = base.Balance.Add(credit)
	return nil
}

// settleLiquidityPosition moves everything a range accrued into the token
// positions and snapshots the range.
func (a *Account) settleLiquidityPosition(w *VPoolWrapper, token common.Address, lp *LiquidityPosition, constants Constants) error {
	values, err := w.GetValuesInside(lp.TickLower, lp.TickUpper)
	if err != nil {
		return err
	}
	adj, err := lp.Update(values)
	if err != nil {
		return err
	}
	base := a.tokenPosition(constants.VBase)
	base.Balance = base.Balance.Add(adj.VBaseIncrease)
	pos := a.tokenPosition(token)
	pos.NetTraderPosition = pos.NetTraderPosition.Add(adj.TraderPositionIncrease)
	return nil
}

func (a *Account) swap(markets Markets, token common.Address, amount decimal.Decimal, isNotional bool, constants Constants) (SwapResult, error) {
	w, err := a.vTokenWrapper(markets, token, constants)
	if err != nil {
		return SwapResult{}, err
	}
	if err := w.UpdateGlobalFunding(); err != nil {
		return SwapResult{}, err
	}
	if err := a.settleTokenFunding(w, token, constants); err != nil {
		return SwapResult{}, err
	}
	res, err := w.Swap(amount, isNotional, ZERO)
	if err != nil {
		return SwapResult{}, err
	}
	pos := a.tokenPosition(token)
	pos.Balance = pos.Balance.Add(res.VTokenDelta)
	pos.NetTraderPosition = pos.NetTraderPosition.Add(res.VTokenDelta)
	base := a.tokenPosition(constants.VBase)
	base.Balance = base.Balance.Add(res.VBaseDelta)
	return res, nil
}

func (a *Account) checkedSwap(markets Markets, token common.Address, amount decimal.Decimal, isNotional bool, constants Constants) (SwapResult, error) {
	var res SwapResult
	err := a.atomically(markets, func() error {
		var err error
		res, err = a.swap(markets, token, amount, isNotional, constants)
		if err != nil {
			return err
		}
		return a.CheckInitialMargin(markets, constants)
	})
	if err != nil {
		return SwapResult{}, err
	}
	return res, nil
}

// SwapTokenAmount trades amount vToken, positive to go long.
func (a *Account) SwapTokenAmount(markets Markets, token common.Address, amount decimal.Decimal, constants Constants) (SwapResult, error) {
	return a.checkedSwap(markets, token, amount, false, constants)
}

// SwapTokenNotional trades notional vBase worth of vToken, positive to go long.
func (a *Account) SwapTokenNotional(markets Markets, token common.Address, notional decimal.Decimal, constants Constants) (SwapResult, error) {
	return a.checkedSwap(markets, token, notional, true, constants)
}

func (a *Account) liquidityChange(
	markets Markets,
	token common.Address,
	tickLower, tickUpper int,
	liquidityDelta decimal.Decimal,
	limitOrderType LimitOrderType,
	constants Constants,
) error {
	if liquidityDelta.IsZero() {
		return INVALID_AMOUNT
	}
	w, err := a.vTokenWrapper(markets, token, constants)
	if err != nil {
		return err
	}
	set := a.liquidityPositionSet(token)
	lp, exists := set.Get(tickLower, tickUpper)
	if liquidityDelta.IsNegative() {
		if !exists {
			return fmt.Errorf("range [%d, %d): %w", tickLower, tickUpper, POSITION_NOT_FOUND)
		}
		if lp.Liquidity.LessThan(liquidityDelta.Neg()) {
			return fmt.Errorf("remove %s from %s: %w", liquidityDelta.Neg(), lp.Liquidity, INVALID_LIQUIDITY)
		}
	}
	if err := w.UpdateGlobalFunding(); err != nil {
		return err
	}
	if err := a.settleTokenFunding(w, token, constants); err != nil {
		return err
	}
	if exists {
		if err := a.settleLiquidityPosition(w, token, lp, constants); err != nil {
			return err
		}
	}
	res, err := w.LiquidityChange(tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return err
	}
	pos := a.tokenPosition(token)
	pos.Balance = pos.Balance.Sub(res.VTokenPrincipal)
	base := a.tokenPosition(constants.VBase)
	base.Balance = base.Balance.Sub(res.VBasePrincipal)

	if !exists {
		lp = set.GetPositionAndInitIfAbsent(tickLower, tickUpper)
	}
	lp.Liquidity, err = LiquidityAddDelta(lp.Liquidity, liquidityDelta)
	if err != nil {
		return err
	}
	values, err := w.GetValuesInside(tickLower, tickUpper)
	if err != nil {
		return err
	}
	lp.Snapshot(values)
	if liquidityDelta.IsPositive() {
		lp.LimitOrderType = limitOrderType
	}
	if lp.Liquidity.IsZero() {
		set.Clear(tickLower, tickUpper)
	}
	if set.Len() == 0 {
		delete(a.LiquidityPositions, token)
	}
	return nil
}

// LiquidityChange adds (positive delta) or removes liquidity on a range.
// Adding liquidity has to keep the initial margin.
func (a *Account) LiquidityChange(
	markets Markets,
	token common.Address,
	tickLower, tickUpper int,
	liquidityDelta decimal.Decimal,
	limitOrderType LimitOrderType,
	constants Constants,
) error {
	return a.atomically(markets, func() error {
		if err := a.liquidityChange(markets, token, tickLower, tickUpper, liquidityDelta, limitOrderType, constants); err != nil {
			return err
		}
		if liquidityDelta.IsPositive() {
			return a.CheckInitialMargin(markets, constants)
		}
		return nil
	})
}

// RemoveLimitOrder fully withdraws a range marked as a limit order once price
// is past it on the marked side.
func (a *Account) RemoveLimitOrder(markets Markets, token common.Address, tickLower, tickUpper int, currentTick int, constants Constants) error {
	set, ok := a.LiquidityPositions[token]
	if !ok {
		return fmt.Errorf("range [%d, %d): %w", tickLower, tickUpper, POSITION_NOT_FOUND)
	}
	lp, ok := set.Get(tickLower, tickUpper)
	if !ok {
		return fmt.Errorf("range [%d, %d): %w", tickLower, tickUpper, POSITION_NOT_FOUND)
	}
	if err := lp.CheckLimitOrderRemoval(currentTick); err != nil {
		return err
	}
	return a.atomically(markets, func() error {
		return a.liquidityChange(markets, token, tickLower, tickUpper, lp.Liquidity.Neg(), lp.LimitOrderType, constants)
	})
}

// closeAllLiquidity withdraws every range of every market.
func (a *Account) closeAllLiquidity(markets Markets, constants Constants) error {
	for _, token := range a.activeTokens(constants.VBase) {
		set, ok := a.LiquidityPositions[token]
		if !ok {
			continue
		}
		for _, lp := range set.Sorted() {
			if lp.Liquidity.IsZero() {
				continue
			}
			if err := a.liquidityChange(markets, token, lp.TickLower, lp.TickUpper, lp.Liquidity.Neg(), lp.LimitOrderType, constants); err != nil {
				return err
			}
		}
		set.Compact()
		if set.Len() == 0 {
			delete(a.LiquidityPositions, token)
		}
	}
	return nil
}

// CleanPositions is an administrative reset: every range is withdrawn and
// token positions, vBase included, are zeroed. Deposits are kept.
func (a *Account) CleanPositions(markets Markets, constants Constants) error {
	return a.atomically(markets, func() error {
		return a.cleanPositions(markets, constants)
	})
}

func (a *Account) cleanPositions(markets Markets, constants Constants) error {
	if err := a.closeAllLiquidity(markets, constants); err != nil {
		return err
	}
	for token, pos := range a.TokenPositions {
		if token != constants.VBase {
			w, err := markets.Wrapper(token)
			if err != nil {
				return err
			}
			pos.SumALastX128 = w.Funding.SumAX128
		}
		pos.Balance = ZERO
		pos.NetTraderPosition = ZERO
	}
	return nil
}

func (a *Account) GetAccountDepositBalance(token common.Address) decimal.Decimal {
	return a.Deposits[token]
}

// GetAccountTokenDetails returns balance, net trader position and the funding
// snapshot of a token position.
func (a *Account) GetAccountTokenDetails(token common.Address) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	pos, ok := a.TokenPositions[token]
	if !ok {
		return ZERO, ZERO, ZERO
	}
	return pos.Balance, pos.NetTraderPosition, pos.SumALastX128
}

func (a *Account) GetAccountLiquidityPositionNum(token common.Address) int {
	set, ok := a.LiquidityPositions[token]
	if !ok {
		return 0
	}
	return set.Len()
}

// GetAccountLiquidityPositionDetails returns a copy of the index-th range in
// tick order.
func (a *Account) GetAccountLiquidityPositionDetails(token common.Address, index int) (*LiquidityPosition, error) {
	set, ok := a.LiquidityPositions[token]
	if !ok || index < 0 || index >= set.Len() {
		return nil, POSITION_NOT_FOUND
	}
	return set.Sorted()[index].Clone(), nil
}

func (a *Account) GormDataType() string {
	return "LONGTEXT"
}

func (a *Account) Scan(value interface{}) error {
	var err error
	switch v := value.(type) {
	case []byte:
		err = json.Unmarshal(v, a)
	case string:
		err = json.Unmarshal([]byte(v), a)
	case nil:
		return nil
	default:
		err = errors.New(fmt.Sprint("Failed to unmarshal Account value:", value))
	}
	return err
}

func (a *Account) Value() (driver.Value, error) {
	bs, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}
