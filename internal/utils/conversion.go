/*
This file contains the conversions between human-unit decimals and on-chain integer base units.

Amounts typed by people stay exact decimals (shopspring/decimal) until the very last step, where they
are scaled by the token's decimals into an SDK Int. Floats are never involved.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision  = errors.New("precision is invalid")
	ErrAmountEmpty       = errors.New("amount is empty")
	ErrAmountMalformed   = errors.New("amount is not a decimal number")
	ErrAmountNegative    = errors.New("amount is negative")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrExcessPrecision   = errors.New("amount has more decimal places than the asset supports")
	ErrRateOutOfRange    = errors.New("rate must be between 0 and 100 percent")
)

// FixedPointDecimals is the precision the protocol uses for rates and share amounts.
const FixedPointDecimals = 18

const maxPrecision = 36

// ParsePositiveAmount parses user input into a strictly positive decimal.
func ParsePositiveAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrAmountEmpty
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountMalformed, trimmed)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAmountNotPositive, amount.String())
	}
	return amount, nil
}

// ToBaseUnits scales an amount into integer base units. It refuses amounts that carry more
// fractional digits than the asset has decimals, instead of silently truncating them.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (sdkmath.Int, error) {
	if decimals > maxPrecision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, decimals, maxPrecision)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s with %d decimals", ErrExcessPrecision, amount.String(), decimals)
	}
	return sdkmath.NewIntFromBigInt(scaled.BigInt()), nil
}

// TruncateToBaseUnits scales an amount into integer base units, dropping any digits beyond the
// asset's precision. This is the single place where rounding toward zero happens.
func TruncateToBaseUnits(amount decimal.Decimal, decimals uint8) (sdkmath.Int, error) {
	if decimals > maxPrecision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, decimals, maxPrecision)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return sdkmath.NewIntFromBigInt(amount.Shift(int32(decimals)).Truncate(0).BigInt()), nil
}

// FromBaseUnits converts an on-chain integer into a human-unit decimal.
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// IntFromBaseUnits is FromBaseUnits for SDK Ints.
func IntFromBaseUnits(amount sdkmath.Int, decimals uint8) decimal.Decimal {
	if amount.IsNil() {
		return decimal.Zero
	}
	return FromBaseUnits(amount.BigInt(), decimals)
}

// PercentToFixedPoint converts a percentage in [0, 100] into the protocol's 1e18 fixed point
// fraction, e.g. 2 -> 0.02 * 1e18 = 20000000000000000.
func PercentToFixedPoint(rate decimal.Decimal) (sdkmath.Int, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrRateOutOfRange, rate.String())
	}
	return TruncateToBaseUnits(rate.Shift(-2), FixedPointDecimals)
}

// PercentToFraction converts a percentage into a plain fraction (0.5 -> 0.005).
func PercentToFraction(rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateOutOfRange, rate.String())
	}
	return rate.Shift(-2), nil
}

// FixedPointToDec exposes a 1e18 fixed point integer as an SDK LegacyDec, which shares the same
// internal precision.
func FixedPointToDec(value sdkmath.Int) sdkmath.LegacyDec {
	if value.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(value.BigInt(), FixedPointDecimals)
}
