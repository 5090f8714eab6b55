package vtoken_ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	clock := NewManualClock(1000)
	ch := NewClearingHouse(Constants{VBase: testVBase, MinRequiredMargin: d(10)}, testLiquidationParams(), nil)
	_, err := ch.AddSimMarket(testMarketConfig(), &FixedOracle{PriceX128: Q128}, clock)
	require.NoError(t, err)
	lp, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	trader, err := ch.CreateAccount(testOwner)
	require.NoError(t, err)
	require.NoError(t, ch.AddMargin(lp, testVBase, d(20000000)))
	require.NoError(t, ch.AddMargin(trader, testVBase, d(1000000)))
	require.NoError(t, ch.LiquidityChange(lp, testVToken, -1000, 1000, d(1000000000), LimitOrderLower))
	clock.Advance(30)
	_, err = ch.SwapTokenNotional(trader, testVToken, d(-50000))
	require.NoError(t, err)
	ch.insuranceFund = d(42)

	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(ch))
	// saving again upserts
	require.NoError(t, store.Save(ch))

	loaded, err := store.Load(clock, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ch.Constants().VBase, loaded.Constants().VBase)
	assertDecimal(t, d(10), loaded.Constants().MinRequiredMargin)
	assertDecimal(t, d(42), loaded.InsuranceFund())
	assert.ElementsMatch(t, ch.AccountIds(), loaded.AccountIds())

	want, err := ch.Market(testVToken)
	require.NoError(t, err)
	got, err := loaded.Market(testVToken)
	require.NoError(t, err)
	assert.Equal(t, want.CurrentTick(), got.CurrentTick())
	assertDecimal(t, want.Funding.SumAX128, got.Funding.SumAX128)
	assertDecimal(t, want.Funding.SumBX128, got.Funding.SumBX128)
	assert.Equal(t, want.Funding.TimestampLast, got.Funding.TimestampLast)
	assert.True(t, got.Pool().TickInitialized(-1000))

	for _, id := range []string{lp, trader} {
		before, err := ch.Account(id)
		require.NoError(t, err)
		after, err := loaded.Account(id)
		require.NoError(t, err)
		wantValue, err := ch.GetAccountMarketValue(id)
		require.NoError(t, err)
		gotValue, err := loaded.GetAccountMarketValue(id)
		require.NoError(t, err)
		assertDecimal(t, wantValue, gotValue)
		b0, n0, _ := before.GetAccountTokenDetails(testVToken)
		b1, n1, _ := after.GetAccountTokenDetails(testVToken)
		assertDecimal(t, b0, b1)
		assertDecimal(t, n0, n1)
	}
	lpAcc, err := loaded.Account(lp)
	require.NoError(t, err)
	pos, err := lpAcc.GetAccountLiquidityPositionDetails(testVToken, 0)
	require.NoError(t, err)
	assert.Equal(t, LimitOrderLower, pos.LimitOrderType)

	// the loaded clearing house keeps trading
	_, err = loaded.SwapTokenNotional(trader, testVToken, d(50000))
	require.NoError(t, err)
}

func TestSnapshotStoreRejectsExternalPools(t *testing.T) {
	ch, _ := newTestClearingHouse(t)
	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()
	assert.Error(t, store.Save(ch))

	_, err = store.Load(nil, nil, nil)
	assert.Error(t, err, "nothing was saved")
}
