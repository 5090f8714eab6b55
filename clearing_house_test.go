package vtoken_ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClearingHouse(t *testing.T) (*ClearingHouse, *Metrics) {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	ch := NewClearingHouse(testConstants(), testLiquidationParams(), metrics)
	_, err = ch.AddMarket(testMarketConfig(), newFakePool(1, 0), &FixedOracle{PriceX128: Q128}, NewManualClock(1000))
	require.NoError(t, err)
	return ch, metrics
}

// marketPool returns the fake pool behind the test market.
func marketPool(t *testing.T, ch *ClearingHouse) *fakePool {
	t.Helper()
	w, err := ch.Market(testVToken)
	require.NoError(t, err)
	return w.Pool().(*fakePool)
}

func TestClearingHouseMarkets(t *testing.T) {
	ch, _ := newTestClearingHouse(t)

	_, err := ch.AddMarket(testMarketConfig(), newFakePool(1, 0), &FixedOracle{PriceX128: Q128}, nil)
	assert.Error(t, err)

	cfg := testMarketConfig()
	cfg.VToken = testVBase
	_, err = ch.AddMarket(cfg, newFakePool(1, 0), &FixedOracle{PriceX128: Q128}, nil)
	assert.ErrorIs(t, err, UNSUPPORTED_TOKEN)

	_, err = ch.Market(common.HexToAddress("0x99"))
	assert.ErrorIs(t, err, UNSUPPORTED_TOKEN)
	assert.Len(t, ch.Markets(), 1)
}

func TestClearingHouseAccounts(t *testing.T) {
	ch, _ := newTestClearingHouse(t)
	id, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ch.AccountIds())

	acc, err := ch.Account(id)
	require.NoError(t, err)
	assert.Equal(t, testOwner, acc.Owner)

	// returned accounts are copies
	acc.Deposits[testVBase] = d(1000)
	acc, err = ch.Account(id)
	require.NoError(t, err)
	assert.True(t, acc.GetAccountDepositBalance(testVBase).IsZero())

	_, err = ch.Account("missing")
	assert.ErrorIs(t, err, ACCOUNT_NOT_FOUND)

	err = ch.AddMargin("missing", testVBase, d(1))
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "AddMargin", opErr.Op)
	assert.Equal(t, "missing", opErr.AccountId)
	assert.ErrorIs(t, err, ACCOUNT_NOT_FOUND)

	err = ch.AddMargin(id, common.HexToAddress("0x99"), d(1))
	assert.ErrorIs(t, err, UNSUPPORTED_TOKEN)
	require.NoError(t, ch.AddMargin(id, testVToken, d(5)))
	require.NoError(t, ch.AddMargin(id, testVBase, d(5)))

	value, err := ch.GetAccountMarketValue(id)
	require.NoError(t, err)
	assertDecimal(t, d(10), value)
}

func TestClearingHouseRollsBackFailedOperations(t *testing.T) {
	ch, metrics := newTestClearingHouse(t)
	id, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(id, testVBase, d(300)))
	_, err = ch.SwapTokenAmount(id, testVToken, d(1000))
	require.NoError(t, err)

	err = ch.RemoveMargin(id, testVBase, d(200))
	assert.ErrorIs(t, err, INSUFFICIENT_MARGIN)
	assert.True(t, Recoverable(err))
	acc, err := ch.Account(id)
	require.NoError(t, err)
	assertDecimal(t, d(300), acc.GetAccountDepositBalance(testVBase))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rollbacks.WithLabelValues("RemoveMargin")))

	_, err = ch.SwapTokenAmount(id, testVToken, d(1000))
	assert.ErrorIs(t, err, INSUFFICIENT_MARGIN)
	acc, err = ch.Account(id)
	require.NoError(t, err)
	assertTokenBalances(t, acc, d(1000), d(-1000))

	boom := errors.New("boom")
	marketPool(t, ch).swapErr = boom
	_, err = ch.SwapTokenNotional(id, testVToken, d(-10))
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "SwapTokenNotional", opErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.False(t, Recoverable(err))
	acc, err = ch.Account(id)
	require.NoError(t, err)
	assertTokenBalances(t, acc, d(1000), d(-1000))

	required, err := ch.GetRequiredMargin(id, true)
	require.NoError(t, err)
	assertDecimal(t, d(200), required)
}

func TestClearingHouseRollbackKeepsMarketHandles(t *testing.T) {
	ch, _ := newTestClearingHouse(t)
	w, err := ch.Market(testVToken)
	require.NoError(t, err)
	pool := marketPool(t, ch)

	lp, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(lp, testVBase, d(100000)))
	require.NoError(t, ch.LiquidityChange(lp, testVToken, -10, 10, d(1000), LimitOrderNone))
	id, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(id, testVBase, d(100)))
	_, err = ch.SwapTokenAmount(id, testVToken, d(300))
	require.NoError(t, err)
	sumB := w.Funding.SumBX128

	assert.ErrorIs(t, ch.RemoveMargin(id, testVBase, d(90)), INSUFFICIENT_MARGIN)
	assertDecimal(t, sumB, w.Funding.SumBX128)

	_, err = ch.SwapTokenAmount(id, testVToken, d(10))
	require.NoError(t, err)
	live, err := ch.Market(testVToken)
	require.NoError(t, err)
	assert.Same(t, w, live)
	assert.Same(t, pool, w.Pool())
	assert.False(t, w.Funding.SumBX128.Equal(sumB))
	assert.Same(t, w, ch.Markets()[testVToken])
}

func TestClearingHouseMarketsIsACopy(t *testing.T) {
	ch, _ := newTestClearingHouse(t)
	markets := ch.Markets()
	delete(markets, testVToken)
	assert.Len(t, ch.Markets(), 1)
	_, err := ch.Market(testVToken)
	assert.NoError(t, err)
}

func TestClearingHouseLiquidation(t *testing.T) {
	ch, metrics := newTestClearingHouse(t)
	trader, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	keeper, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(trader, testVBase, d(300)))
	_, err = ch.SwapTokenAmount(trader, testVToken, d(1000))
	require.NoError(t, err)

	_, err = ch.LiquidateTokenPosition(trader, keeper, testVToken, 10000)
	assert.ErrorIs(t, err, NOT_LIQUIDATABLE)
	_, err = ch.LiquidateTokenPosition(trader, trader, testVToken, 10000)
	assert.ErrorIs(t, err, errSelfLiquidation)
	_, err = ch.LiquidateLiquidityPositions(keeper, keeper)
	assert.ErrorIs(t, err, errSelfLiquidation)
	_, err = ch.LiquidateTokenPosition(trader, "missing", testVToken, 10000)
	assert.ErrorIs(t, err, ACCOUNT_NOT_FOUND)

	marketPool(t, ch).twapTick = -10000
	fees, err := ch.LiquidateTokenPosition(trader, keeper, testVToken, 10000)
	require.NoError(t, err)
	assert.NotEmpty(t, fees.Id)
	assertDecimal(t, d(7), fees.KeeperFee)
	assertDecimal(t, d(5), fees.InsuranceFundFee)
	assertDecimal(t, d(5), ch.InsuranceFund())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Liquidations.WithLabelValues("token")))

	keeperAcc, err := ch.Account(keeper)
	require.NoError(t, err)
	keeperBase, _, _ := keeperAcc.GetAccountTokenDetails(testVBase)
	assertDecimal(t, d(7), keeperBase)
	traderAcc, err := ch.Account(trader)
	require.NoError(t, err)
	assertTokenBalances(t, traderAcc, ZERO, d(-12))
}

func TestClearingHouseRemoveLimitOrderUsesTwapTick(t *testing.T) {
	ch, _ := newTestClearingHouse(t)
	id, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(id, testVBase, d(100)))
	require.NoError(t, ch.LiquidityChange(id, testVToken, 100, 200, d(3), LimitOrderUpper))

	err = ch.RemoveLimitOrder(id, testVToken, 100, 200)
	assert.ErrorIs(t, err, INELIGIBLE_LIMIT_ORDER_REMOVAL)

	pool := marketPool(t, ch)
	pool.twapTick = 200
	require.NoError(t, ch.RemoveLimitOrder(id, testVToken, 100, 200))
	assert.Equal(t, 0, pool.CurrentTick())

	acc, err := ch.Account(id)
	require.NoError(t, err)
	assert.Equal(t, 0, acc.GetAccountLiquidityPositionNum(testVToken))
	assertTokenBalances(t, acc, ZERO, ZERO)

	require.NoError(t, ch.CleanPositions(id))
	assert.ErrorIs(t, ch.CleanPositions("missing"), ACCOUNT_NOT_FOUND)
}

func TestClearingHouseOnSimPool(t *testing.T) {
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	ch := NewClearingHouse(testConstants(), testLiquidationParams(), metrics)
	clock := NewManualClock(1000)
	_, err = ch.AddSimMarket(testMarketConfig(), &FixedOracle{PriceX128: Q128}, clock)
	require.NoError(t, err)
	w, err := ch.Market(testVToken)
	require.NoError(t, err)
	assert.Equal(t, 0, w.CurrentTick())

	lp, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	trader, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(lp, testVBase, d(20000000)))
	require.NoError(t, ch.AddMargin(trader, testVBase, d(1000000)))
	require.NoError(t, ch.LiquidityChange(lp, testVToken, -1000, 1000, d(1000000000), LimitOrderNone))

	res, err := ch.SwapTokenAmount(trader, testVToken, d(100000))
	require.NoError(t, err)
	assertDecimal(t, d(100000), res.VTokenDelta)
	assert.True(t, res.VBaseDelta.LessThan(d(-100000)))
	assert.Greater(t, res.TickAfter, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Trades.WithLabelValues(testVToken.Hex(), "token")))

	require.NoError(t, ch.LiquidityChange(lp, testVToken, -1000, 1000, d(-1000000000), LimitOrderNone))
	lpAcc, err := ch.Account(lp)
	require.NoError(t, err)
	assert.Equal(t, 0, lpAcc.GetAccountLiquidityPositionNum(testVToken))
	lpBalance, lpNet, _ := lpAcc.GetAccountTokenDetails(testVToken)
	assert.InDelta(t, -100000, lpNet.InexactFloat64(), 5)
	assert.InDelta(t, -100000, lpBalance.InexactFloat64(), 5)
}
