package vtoken_ledger

import (
	"errors"
	"fmt"
)

var (
	ARITHMETIC_OVERFLOW            = errors.New("ArithmeticOverflow")
	INVALID_TIMESTAMP              = errors.New("InvalidTimestamp")
	INELIGIBLE_LIMIT_ORDER_REMOVAL = errors.New("IneligibleLimitOrderRemoval")
	INSUFFICIENT_MARGIN            = errors.New("InsufficientMargin")
	NOT_LIQUIDATABLE               = errors.New("NotLiquidatable")

	INVALID_TICK              = errors.New("InvalidTick")
	INVALID_LIQUIDITY         = errors.New("InvalidLiquidity")
	UNSUPPORTED_TOKEN         = errors.New("UnsupportedToken")
	POSITION_NOT_FOUND        = errors.New("PositionNotFound")
	ACCOUNT_NOT_FOUND         = errors.New("AccountNotFound")
	LIQUIDITY_POSITIONS_EXIST = errors.New("LiquidityPositionsExist")
	INVALID_AMOUNT            = errors.New("InvalidAmount")
)

// OperationError tells the caller which operation was rolled back.
type OperationError struct {
	Op        string
	AccountId string
	Err       error
}

func (e *OperationError) Error() string {
	if e.AccountId == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Op, e.AccountId, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the caller may retry once market or account
// conditions change. Overflow and timestamp failures never recover.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, INELIGIBLE_LIMIT_ORDER_REMOVAL),
		errors.Is(err, INSUFFICIENT_MARGIN),
		errors.Is(err, NOT_LIQUIDATABLE):
		return true
	}
	return false
}

var (
	PRICE_LIMIT          = errors.New("PriceLimit")
	POOL_NOT_INITIALIZED = errors.New("PoolNotInitialized")
)
