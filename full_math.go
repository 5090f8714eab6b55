package vtoken_ledger

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func checkInt256(x decimal.Decimal) (decimal.Decimal, error) {
	if x.GreaterThan(MaxInt256) || x.LessThan(MinInt256) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	return x, nil
}

func SignedAdd(a, b decimal.Decimal) (decimal.Decimal, error) {
	return checkInt256(a.Add(b))
}

func SignedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	return checkInt256(a.Sub(b))
}

// MulDiv computes a*b/denominator with a full precision intermediate product,
// truncating toward zero. Only the result is range checked.
func MulDiv(a, b, denominator decimal.Decimal) (decimal.Decimal, error) {
	if denominator.IsZero() {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q := p.Quo(p, denominator.BigInt())
	return checkInt256(decimal.NewFromBigInt(q, 0))
}

// MulDivRoundingDown floors a*b/denominator toward negative infinity.
func MulDivRoundingDown(a, b, denominator decimal.Decimal) (decimal.Decimal, error) {
	if denominator.IsZero() {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	d := denominator.BigInt()
	q, m := new(big.Int).QuoRem(p, d, new(big.Int))
	if m.Sign() != 0 && (p.Sign() < 0) != (d.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return checkInt256(decimal.NewFromBigInt(q, 0))
}

// MulDivRoundingUp is the unsigned ceil variant used by the sqrt price math.
func MulDivRoundingUp(a, b, denominator decimal.Decimal) (decimal.Decimal, error) {
	if a.IsNegative() || b.IsNegative() || !denominator.IsPositive() {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	p := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q, m := new(big.Int).QuoRem(p, denominator.BigInt(), new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	result := decimal.NewFromBigInt(q, 0)
	if result.GreaterThan(MaxUint256) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	return result, nil
}

func MulDivX128(a, b decimal.Decimal) (decimal.Decimal, error) {
	return MulDiv(a, b, Q128)
}

func MulDivX96(a, b decimal.Decimal) (decimal.Decimal, error) {
	return MulDiv(a, b, Q96)
}

// Mod256Sub is the unchecked subtraction the pool uses for fee growth.
func Mod256Sub(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(a, b)
}

// MulDivUint256X128 turns a wrapped fee growth delta into a token amount for
// the given liquidity.
func MulDivUint256X128(growthDeltaX128 *uint256.Int, liquidity decimal.Decimal) (decimal.Decimal, error) {
	if liquidity.IsNegative() || liquidity.GreaterThan(MaxUint128) {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	l, err := ToUint256(liquidity)
	if err != nil {
		return ZERO, err
	}
	q128 := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	r, overflow := new(uint256.Int).MulDivOverflow(growthDeltaX128, l, q128)
	if overflow {
		return ZERO, ARITHMETIC_OVERFLOW
	}
	return FromUint256(r), nil
}

func FromUint256(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return ZERO
	}
	return decimal.NewFromBigInt(x.ToBig(), 0)
}

func ToUint256(x decimal.Decimal) (*uint256.Int, error) {
	if x.IsNegative() {
		return nil, ARITHMETIC_OVERFLOW
	}
	u, overflow := uint256.FromBig(x.BigInt())
	if overflow {
		return nil, ARITHMETIC_OVERFLOW
	}
	return u, nil
}

// ToQ128 lifts an integer into X128 fixed point.
func ToQ128(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Mul(Q128)
}

// Uint256ToQ128 is the uint256 flavour of ToQ128, for native fee growth.
func Uint256ToQ128(v uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(v), 128)
}
