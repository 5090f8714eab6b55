package vtoken_ledger

import "github.com/shopspring/decimal"

var (
	MaxUint128 = decimal.NewFromInt(2).Pow(decimal.NewFromInt(128)).Sub(decimal.NewFromInt(1))
	MaxUint256 = decimal.NewFromInt(2).Pow(decimal.NewFromInt(256)).Sub(decimal.NewFromInt(1))
	MaxInt128  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(127)).Sub(decimal.NewFromInt(1))
	MinInt128  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(127)).Neg()
	MaxInt256  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(255)).Sub(decimal.NewFromInt(1))
	MinInt256  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(255)).Neg()

	Q64  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(64))
	Q96  = decimal.NewFromInt(2).Pow(decimal.NewFromInt(96))
	Q128 = decimal.NewFromInt(2).Pow(decimal.NewFromInt(128))
	Q192 = decimal.NewFromInt(2).Pow(decimal.NewFromInt(192))

	// 10_000 basis points == 100%
	BPS_DENOMINATOR = decimal.NewFromInt(10000)

	MIN_TICK          int = -887272
	MAX_TICK          int = -MIN_TICK
	MIN_SQRT_RATIO        = decimal.NewFromInt(4295128739)
	MAX_SQRT_RATIO, _     = decimal.NewFromString("1461446703485210103287273052203988822378723970342")

	ZERO = decimal.Zero
	ONE  = decimal.NewFromInt(1)
)

const (
	// funding is normalised per day unless a market overrides it
	DEFAULT_TIME_HORIZON  uint64 = 86400
	DEFAULT_TWAP_DURATION uint32 = 60
)
