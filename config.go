package vtoken_ledger

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MarketConfig is the per vToken risk and funding configuration.
type MarketConfig struct {
	VToken                    common.Address `yaml:"vtoken"`
	TimeHorizon               uint64         `yaml:"time_horizon"`
	InitialMarginRatioBps     uint32         `yaml:"initial_margin_ratio_bps"`
	MaintenanceMarginRatioBps uint32         `yaml:"maintenance_margin_ratio_bps"`
	TwapDuration              uint32         `yaml:"twap_duration"`
	TickSpacing               int            `yaml:"tick_spacing"`
	ExtendedFeeBps            uint32         `yaml:"extended_fee_bps"`
	// native pool fee in pips, only used when the market runs on a SimPool
	PoolFee uint32 `yaml:"pool_fee"`
	// vBase per vToken, only used to seed a SimPool
	InitialPrice decimal.Decimal `yaml:"initial_price"`
}

func DefaultMarketConfig(vToken common.Address) MarketConfig {
	return MarketConfig{
		VToken:                    vToken,
		TimeHorizon:               DEFAULT_TIME_HORIZON,
		InitialMarginRatioBps:     2000,
		MaintenanceMarginRatioBps: 1000,
		TwapDuration:              DEFAULT_TWAP_DURATION,
		TickSpacing:               10,
		PoolFee:                   500,
	}
}

func (m MarketConfig) Validate() error {
	if m.VToken == (common.Address{}) {
		return fmt.Errorf("market vtoken address is required")
	}
	if m.TimeHorizon == 0 {
		return fmt.Errorf("market %s: time horizon must be positive", m.VToken)
	}
	if m.InitialMarginRatioBps == 0 || m.MaintenanceMarginRatioBps == 0 {
		return fmt.Errorf("market %s: margin ratios must be positive", m.VToken)
	}
	if m.MaintenanceMarginRatioBps >= m.InitialMarginRatioBps {
		return fmt.Errorf("market %s: maintenance ratio %d must be below initial ratio %d",
			m.VToken, m.MaintenanceMarginRatioBps, m.InitialMarginRatioBps)
	}
	// margin ratios may exceed 10000, which requires more than full collateral
	if m.ExtendedFeeBps > 10000 {
		return fmt.Errorf("market %s: extended fee %d bps exceeds 10000", m.VToken, m.ExtendedFeeBps)
	}
	if m.TickSpacing <= 0 {
		return fmt.Errorf("market %s: tick spacing must be positive", m.VToken)
	}
	return nil
}

type LiquidationParams struct {
	FixFee                    decimal.Decimal `yaml:"fix_fee"`
	LiquidationFeeFractionBps uint32          `yaml:"liquidation_fee_fraction_bps"`
	InsuranceFundFeeShareBps  uint32          `yaml:"insurance_fund_fee_share_bps"`
}

func (p LiquidationParams) Validate() error {
	if p.FixFee.IsNegative() {
		return fmt.Errorf("fix fee cannot be negative")
	}
	if p.LiquidationFeeFractionBps > 10000 || p.InsuranceFundFeeShareBps > 10000 {
		return fmt.Errorf("liquidation bps values cannot exceed 10000")
	}
	return nil
}

type Constants struct {
	VBase             common.Address  `yaml:"vbase"`
	MinRequiredMargin decimal.Decimal `yaml:"min_required_margin"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	JSON       bool   `yaml:"json"`
}

type Config struct {
	DB          string            `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Constants   Constants         `yaml:"constants"`
	Liquidation LiquidationParams `yaml:"liquidation"`
	Markets     []MarketConfig    `yaml:"markets"`
}

// LoadConfig reads the yaml file at path, applies .env and environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Markets {
		applyMarketDefaults(&cfg.Markets[i])
	}
	// a missing .env is not an error, the process environment still applies
	_ = godotenv.Load()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyMarketDefaults(m *MarketConfig) {
	if m.TimeHorizon == 0 {
		m.TimeHorizon = DEFAULT_TIME_HORIZON
	}
	if m.TwapDuration == 0 {
		m.TwapDuration = DEFAULT_TWAP_DURATION
	}
}

func (c *Config) Validate() error {
	if c.Constants.VBase == (common.Address{}) {
		return fmt.Errorf("vbase address is required")
	}
	if c.Constants.MinRequiredMargin.IsNegative() {
		return fmt.Errorf("min required margin cannot be negative")
	}
	if err := c.Liquidation.Validate(); err != nil {
		return err
	}
	seen := map[common.Address]bool{}
	for _, m := range c.Markets {
		if err := m.Validate(); err != nil {
			return err
		}
		if m.VToken == c.Constants.VBase {
			return fmt.Errorf("market %s: vtoken cannot be the vbase", m.VToken)
		}
		if seen[m.VToken] {
			return fmt.Errorf("market %s configured twice", m.VToken)
		}
		seen[m.VToken] = true
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if db := os.Getenv("VTOKEN_LEDGER_DB"); db != "" {
		cfg.DB = db
	}
	if level := os.Getenv("VTOKEN_LEDGER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv("VTOKEN_LEDGER_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
}
