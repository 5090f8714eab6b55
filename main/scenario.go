package main

import (
	"fmt"
	"os"
	"strings"

	vtoken_ledger "github.com/CoinSummer/vtoken-ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted list of clearing house operations run against a
// manual clock.
type Scenario struct {
	StartTime uint64 `yaml:"start_time"`
	Steps     []Step `yaml:"steps"`
}

type Step struct {
	Op string `yaml:"op"`
	// seconds to advance the clock before the operation
	Advance    uint64          `yaml:"advance"`
	Account    string          `yaml:"account"`
	Keeper     string          `yaml:"keeper"`
	Owner      common.Address  `yaml:"owner"`
	Token      common.Address  `yaml:"token"`
	Amount     decimal.Decimal `yaml:"amount"`
	TickLower  int             `yaml:"tick_lower"`
	TickUpper  int             `yaml:"tick_upper"`
	LimitOrder string          `yaml:"limit_order"`
	Bps        uint32          `yaml:"bps"`
	// allow the operation to fail without stopping the scenario
	MayFail bool `yaml:"may_fail"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	for i, step := range s.Steps {
		if step.Op == "" {
			return nil, fmt.Errorf("step %d: op is required", i)
		}
	}
	return &s, nil
}

type runner struct {
	ch      *vtoken_ledger.ClearingHouse
	clock   *vtoken_ledger.ManualClock
	oracles map[common.Address]*vtoken_ledger.FixedOracle
	// scenario account names to clearing house ids
	names map[string]string
}

func (r *runner) accountId(name string) (string, error) {
	id, ok := r.names[name]
	if !ok {
		return "", fmt.Errorf("unknown account %q", name)
	}
	return id, nil
}

func (r *runner) run(step Step) error {
	if step.Advance > 0 {
		r.clock.Advance(step.Advance)
	}
	op := strings.ToLower(step.Op)
	if op == "create_account" {
		id, err := r.ch.CreateAccount(step.Owner)
		if err != nil {
			return err
		}
		r.names[step.Account] = id
		return nil
	}
	if op == "advance" {
		return nil
	}
	if op == "set_price" {
		oracle, ok := r.oracles[step.Token]
		if !ok {
			return fmt.Errorf("no oracle for %s", step.Token)
		}
		oracle.PriceX128 = step.Amount.Mul(vtoken_ledger.Q128).Floor()
		return nil
	}

	id, err := r.accountId(step.Account)
	if err != nil {
		return err
	}
	switch op {
	case "add_margin":
		return r.ch.AddMargin(id, step.Token, step.Amount)
	case "remove_margin":
		return r.ch.RemoveMargin(id, step.Token, step.Amount)
	case "swap_amount":
		_, err = r.ch.SwapTokenAmount(id, step.Token, step.Amount)
		return err
	case "swap_notional":
		_, err = r.ch.SwapTokenNotional(id, step.Token, step.Amount)
		return err
	case "liquidity_change":
		limitOrder, err := vtoken_ledger.ParseLimitOrderType(step.LimitOrder)
		if err != nil {
			return err
		}
		return r.ch.LiquidityChange(id, step.Token, step.TickLower, step.TickUpper, step.Amount, limitOrder)
	case "remove_limit_order":
		return r.ch.RemoveLimitOrder(id, step.Token, step.TickLower, step.TickUpper)
	case "clean_positions":
		return r.ch.CleanPositions(id)
	case "liquidate_liquidity":
		keeper, err := r.accountId(step.Keeper)
		if err != nil {
			return err
		}
		_, err = r.ch.LiquidateLiquidityPositions(id, keeper)
		return err
	case "liquidate_token":
		keeper, err := r.accountId(step.Keeper)
		if err != nil {
			return err
		}
		_, err = r.ch.LiquidateTokenPosition(id, keeper, step.Token, step.Bps)
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}
