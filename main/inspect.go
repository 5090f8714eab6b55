package main

import (
	"fmt"
	"io"

	vtoken_ledger "github.com/CoinSummer/vtoken-ledger"
	"github.com/spf13/cobra"
)

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Prints the markets and accounts of a saved snapshot",
		Args:  cobra.NoArgs,
		RunE:  inspectFunc,
	}
}

func inspectFunc(c *cobra.Command, _ []string) error {
	configPath, err := c.Flags().GetString(configKey)
	if err != nil {
		return err
	}
	cfg, err := vtoken_ledger.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := vtoken_ledger.SetupLogger(cfg.Log); err != nil {
		return err
	}
	store, err := vtoken_ledger.OpenSnapshotStore(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	ch, err := store.Load(vtoken_ledger.SystemClock{}, nil, nil)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	markets := ch.Markets()
	for _, vToken := range markets.VTokens() {
		w := markets[vToken]
		fmt.Fprintf(out, "market %s tick %d sumA %s sumFp %s exFee %s ticks %d\n",
			vToken, w.CurrentTick(), w.Funding.SumAX128, w.Funding.SumFpX128,
			w.ExtendedFee.SumExFeeGlobalX128, w.Ticks.Len())
	}
	for _, id := range ch.AccountIds() {
		if err := printAccount(out, ch, id, id); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "insurance fund: %s\n", ch.InsuranceFund())
	return nil
}

func printAccount(out io.Writer, ch *vtoken_ledger.ClearingHouse, name, id string) error {
	acc, err := ch.Account(id)
	if err != nil {
		return err
	}
	value, err := ch.GetAccountMarketValue(id)
	if err != nil {
		return err
	}
	required, err := ch.GetRequiredMargin(id, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "account %s (%s) value %s maintenance %s\n", name, id, value, required)
	for token, amount := range acc.Deposits {
		fmt.Fprintf(out, "  deposit %s: %s\n", token, amount)
	}
	for token := range acc.TokenPositions {
		balance, net, _ := acc.GetAccountTokenDetails(token)
		fmt.Fprintf(out, "  token %s: balance %s net %s\n", token, balance, net)
		for i := 0; i < acc.GetAccountLiquidityPositionNum(token); i++ {
			lp, err := acc.GetAccountLiquidityPositionDetails(token, i)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "    range [%d, %d] liquidity %s %s\n", lp.TickLower, lp.TickUpper, lp.Liquidity, lp.LimitOrderType)
		}
	}
	return nil
}
