package vtoken_ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ClearingHouse owns the markets and accounts and runs every account
// operation atomically: on error the touched state is restored.
type ClearingHouse struct {
	mu            sync.Mutex
	constants     Constants
	liquidation   LiquidationParams
	markets       MarketSet
	accounts      map[string]*Account
	insuranceFund decimal.Decimal
	metrics       *Metrics
}

func NewClearingHouse(constants Constants, liquidation LiquidationParams, metrics *Metrics) *ClearingHouse {
	return &ClearingHouse{
		constants:     constants,
		liquidation:   liquidation,
		markets:       MarketSet{},
		accounts:      map[string]*Account{},
		insuranceFund: ZERO,
		metrics:       metrics,
	}
}

func (ch *ClearingHouse) Constants() Constants {
	return ch.constants
}

// AddMarket registers a vToken market on top of an existing pool.
func (ch *ClearingHouse) AddMarket(cfg MarketConfig, pool UniswapPool, oracle Oracle, clock Clock) (*VPoolWrapper, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if cfg.VToken == ch.constants.VBase {
		return nil, fmt.Errorf("market %s: %w", cfg.VToken, UNSUPPORTED_TOKEN)
	}
	if _, ok := ch.markets[cfg.VToken]; ok {
		return nil, fmt.Errorf("market %s already exists", cfg.VToken)
	}
	w, err := NewVPoolWrapper(cfg, ch.constants.VBase, pool, oracle, clock)
	if err != nil {
		return nil, err
	}
	w.metrics = ch.metrics
	ch.markets[cfg.VToken] = w
	logrus.Infof("market %s added, tick %d", cfg.VToken, pool.CurrentTick())
	return w, nil
}

// AddSimMarket creates a SimPool at cfg.InitialPrice and registers it.
func (ch *ClearingHouse) AddSimMarket(cfg MarketConfig, oracle Oracle, clock Clock) (*VPoolWrapper, error) {
	pool, err := NewSimPoolForMarket(cfg, ch.constants.VBase, clock)
	if err != nil {
		return nil, err
	}
	return ch.AddMarket(cfg, pool, oracle, clock)
}

func NewSimPoolForMarket(cfg MarketConfig, vBase common.Address, clock Clock) (*SimPool, error) {
	if !cfg.InitialPrice.IsPositive() {
		return nil, fmt.Errorf("market %s: initial price must be positive", cfg.VToken)
	}
	isToken0 := bytesLess(cfg.VToken, vBase)
	sqrtPriceX96, err := PriceX128ToSqrtPriceX96(cfg.InitialPrice.Mul(Q128).Floor(), isToken0)
	if err != nil {
		return nil, err
	}
	return NewSimPool(cfg.VToken, vBase, cfg.PoolFee, cfg.TickSpacing, sqrtPriceX96, clock)
}

func (ch *ClearingHouse) Market(vToken common.Address) (*VPoolWrapper, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.markets.Wrapper(vToken)
}

// Markets returns a copy of the market set. The handles are live.
func (ch *ClearingHouse) Markets() MarketSet {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	markets := make(MarketSet, len(ch.markets))
	for t, w := range ch.markets {
		markets[t] = w
	}
	return markets
}

func (ch *ClearingHouse) CreateAccount(owner common.Address) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.accounts[id.String()] = NewAccount(id.String(), owner)
	logrus.Infof("account %s created for %s", id, owner)
	return id.String(), nil
}

// Account returns a copy of the account.
func (ch *ClearingHouse) Account(accountId string) (*Account, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	acc, ok := ch.accounts[accountId]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountId, ACCOUNT_NOT_FOUND)
	}
	return acc.Clone(), nil
}

func (ch *ClearingHouse) AccountIds() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ids := make([]string, 0, len(ch.accounts))
	for id := range ch.accounts {
		ids = append(ids, id)
	}
	return ids
}

func (ch *ClearingHouse) InsuranceFund() decimal.Decimal {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.insuranceFund
}

// execute runs fn against the named accounts. Accounts, markets and the
// insurance fund are restored in place if fn fails.
func (ch *ClearingHouse) execute(op string, fn func(accounts ...*Account) error, accountIds ...string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	accounts := make([]*Account, 0, len(accountIds))
	backups := make([]*Account, 0, len(accountIds))
	for _, id := range accountIds {
		acc, ok := ch.accounts[id]
		if !ok {
			return &OperationError{Op: op, AccountId: id, Err: ACCOUNT_NOT_FOUND}
		}
		accounts = append(accounts, acc)
		backups = append(backups, acc.Clone())
	}
	snapshot, err := snapshotMarkets(ch.markets)
	if err != nil {
		return &OperationError{Op: op, AccountId: accountIds[0], Err: err}
	}
	insuranceFund := ch.insuranceFund

	if err := fn(accounts...); err != nil {
		for i, acc := range accounts {
			*acc = *backups[i]
		}
		if rerr := snapshot.restore(); rerr != nil {
			logrus.Errorf("%s: %s", op, rerr)
		}
		ch.insuranceFund = insuranceFund
		ch.metrics.RolledBack(op)
		logrus.Warnf("%s rolled back for %v: %s", op, accountIds, err)
		return &OperationError{Op: op, AccountId: accountIds[0], Err: err}
	}
	return nil
}

func (ch *ClearingHouse) checkCollateral(token common.Address) error {
	if token == ch.constants.VBase {
		return nil
	}
	_, err := ch.markets.Wrapper(token)
	return err
}

func (ch *ClearingHouse) AddMargin(accountId string, token common.Address, amount decimal.Decimal) error {
	return ch.execute("AddMargin", func(accs ...*Account) error {
		if err := ch.checkCollateral(token); err != nil {
			return err
		}
		return accs[0].AddMargin(token, amount)
	}, accountId)
}

func (ch *ClearingHouse) RemoveMargin(accountId string, token common.Address, amount decimal.Decimal) error {
	return ch.execute("RemoveMargin", func(accs ...*Account) error {
		return accs[0].RemoveMargin(ch.markets, token, amount, ch.constants)
	}, accountId)
}

func (ch *ClearingHouse) SwapTokenAmount(accountId string, token common.Address, amount decimal.Decimal) (SwapResult, error) {
	var res SwapResult
	err := ch.execute("SwapTokenAmount", func(accs ...*Account) error {
		var err error
		res, err = accs[0].SwapTokenAmount(ch.markets, token, amount, ch.constants)
		return err
	}, accountId)
	if err != nil {
		return SwapResult{}, err
	}
	logrus.Debugf("account %s swapped %s of %s: %s vbase", accountId, res.VTokenDelta, token, res.VBaseDelta)
	return res, nil
}

func (ch *ClearingHouse) SwapTokenNotional(accountId string, token common.Address, notional decimal.Decimal) (SwapResult, error) {
	var res SwapResult
	err := ch.execute("SwapTokenNotional", func(accs ...*Account) error {
		var err error
		res, err = accs[0].SwapTokenNotional(ch.markets, token, notional, ch.constants)
		return err
	}, accountId)
	if err != nil {
		return SwapResult{}, err
	}
	logrus.Debugf("account %s swapped %s of %s: %s vbase", accountId, res.VTokenDelta, token, res.VBaseDelta)
	return res, nil
}

func (ch *ClearingHouse) LiquidityChange(
	accountId string,
	token common.Address,
	tickLower, tickUpper int,
	liquidityDelta decimal.Decimal,
	limitOrderType LimitOrderType,
) error {
	return ch.execute("LiquidityChange", func(accs ...*Account) error {
		return accs[0].LiquidityChange(ch.markets, token, tickLower, tickUpper, liquidityDelta, limitOrderType, ch.constants)
	}, accountId)
}

// RemoveLimitOrder checks the order against the market TWAP tick.
func (ch *ClearingHouse) RemoveLimitOrder(accountId string, token common.Address, tickLower, tickUpper int) error {
	return ch.execute("RemoveLimitOrder", func(accs ...*Account) error {
		w, err := ch.markets.Wrapper(token)
		if err != nil {
			return err
		}
		twapTick, err := w.TwapTick()
		if err != nil {
			return err
		}
		return accs[0].RemoveLimitOrder(ch.markets, token, tickLower, tickUpper, twapTick, ch.constants)
	}, accountId)
}

func (ch *ClearingHouse) CleanPositions(accountId string) error {
	return ch.execute("CleanPositions", func(accs ...*Account) error {
		return accs[0].CleanPositions(ch.markets, ch.constants)
	}, accountId)
}

func (ch *ClearingHouse) payLiquidation(keeper *Account, fees LiquidationFees) {
	base := keeper.tokenPosition(ch.constants.VBase)
	base.Balance = base.Balance.Add(fees.KeeperFee)
	ch.insuranceFund = ch.insuranceFund.Add(fees.InsuranceFundFee)
}

var errSelfLiquidation = errors.New("account cannot liquidate itself")

func (ch *ClearingHouse) LiquidateLiquidityPositions(accountId, keeperAccountId string) (LiquidationFees, error) {
	if accountId == keeperAccountId {
		return LiquidationFees{}, &OperationError{Op: "LiquidateLiquidityPositions", AccountId: accountId, Err: errSelfLiquidation}
	}
	var fees LiquidationFees
	err := ch.execute("LiquidateLiquidityPositions", func(accs ...*Account) error {
		var err error
		fees, err = accs[0].LiquidateLiquidityPositions(ch.markets, ch.liquidation, ch.constants)
		if err != nil {
			return err
		}
		fees.Id = uuid.NewString()
		ch.payLiquidation(accs[1], fees)
		return nil
	}, accountId, keeperAccountId)
	if err != nil {
		return LiquidationFees{}, err
	}
	ch.metrics.Liquidated("liquidity")
	logrus.Infof("liquidation %s: account %s ranges closed by %s, notional %s fee %s", fees.Id, accountId, keeperAccountId, fees.NotionalClosed, fees.LiquidationFee)
	return fees, nil
}

func (ch *ClearingHouse) LiquidateTokenPosition(accountId, keeperAccountId string, token common.Address, liquidationBps uint32) (LiquidationFees, error) {
	if accountId == keeperAccountId {
		return LiquidationFees{}, &OperationError{Op: "LiquidateTokenPosition", AccountId: accountId, Err: errSelfLiquidation}
	}
	var fees LiquidationFees
	err := ch.execute("LiquidateTokenPosition", func(accs ...*Account) error {
		var err error
		fees, err = accs[0].LiquidateTokenPosition(ch.markets, token, liquidationBps, ch.liquidation, ch.constants)
		if err != nil {
			return err
		}
		fees.Id = uuid.NewString()
		ch.payLiquidation(accs[1], fees)
		return nil
	}, accountId, keeperAccountId)
	if err != nil {
		return LiquidationFees{}, err
	}
	ch.metrics.Liquidated("token")
	logrus.Infof("liquidation %s: account %s %s position closed by %s, notional %s fee %s", fees.Id, accountId, token, keeperAccountId, fees.NotionalClosed, fees.LiquidationFee)
	return fees, nil
}

func (ch *ClearingHouse) GetAccountMarketValue(accountId string) (decimal.Decimal, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	acc, ok := ch.accounts[accountId]
	if !ok {
		return ZERO, ACCOUNT_NOT_FOUND
	}
	return acc.GetAccountMarketValue(ch.markets, ch.constants)
}

func (ch *ClearingHouse) GetRequiredMargin(accountId string, isInitial bool) (decimal.Decimal, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	acc, ok := ch.accounts[accountId]
	if !ok {
		return ZERO, ACCOUNT_NOT_FOUND
	}
	return acc.GetRequiredMargin(ch.markets, isInitial, ch.constants)
}
