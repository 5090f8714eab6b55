package main

import (
	"fmt"

	vtoken_ledger "github.com/CoinSummer/vtoken-ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	configKey = "config"
	saveKey   = "save"
)

func simulateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Runs a scenario against fresh simulated markets",
		Args:  cobra.ExactArgs(1),
		RunE:  simulateFunc,
	}
	c.Flags().Bool(saveKey, false, "write the final state to the configured db")
	return c
}

func simulateFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	configPath, err := flags.GetString(configKey)
	if err != nil {
		return err
	}
	save, err := flags.GetBool(saveKey)
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
	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := vtoken_ledger.NewMetrics(registry)
	if err != nil {
		return err
	}
	clock := vtoken_ledger.NewManualClock(scenario.StartTime)
	ch := vtoken_ledger.NewClearingHouse(cfg.Constants, cfg.Liquidation, metrics)
	r := &runner{
		ch:      ch,
		clock:   clock,
		oracles: map[common.Address]*vtoken_ledger.FixedOracle{},
		names:   map[string]string{},
	}
	for _, m := range cfg.Markets {
		oracle := &vtoken_ledger.FixedOracle{PriceX128: m.InitialPrice.Mul(vtoken_ledger.Q128).Floor()}
		if _, err := ch.AddSimMarket(m, oracle, clock); err != nil {
			return err
		}
		r.oracles[m.VToken] = oracle
	}

	for i, step := range scenario.Steps {
		if err := r.run(step); err != nil {
			if step.MayFail {
				logrus.Infof("step %d %s failed as allowed: %s", i, step.Op, err)
				continue
			}
			return fmt.Errorf("step %d %s: %w", i, step.Op, err)
		}
	}

	for name, id := range r.names {
		if err := printAccount(c.OutOrStdout(), ch, name, id); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.OutOrStdout(), "insurance fund: %s\n", ch.InsuranceFund())

	if save {
		store, err := vtoken_ledger.OpenSnapshotStore(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Save(ch)
	}
	return nil
}
