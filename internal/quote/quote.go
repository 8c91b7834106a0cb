/*

Package quote computes the live previews shown next to the investor forms.

All arithmetic stays in decimal. Nothing is rounded here except the share estimate, which is
carried at quotientPrecision digits; truncation to integer base units happens only in
MinimumOut, at the point where the value is encoded into a transaction.

*/

package quote

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/shopspring/decimal"
)

const quotientPrecision = 24

var (
	ErrNavUnavailable    = errors.New("net asset value per share is not available")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrRateOutOfRange    = errors.New("fee rate must be a fraction between 0 and 1")
	ErrGuardRoundsToZero = errors.New("minimum output rounds to zero base units")
	ErrToleranceTooLarge = errors.New("slippage tolerance must be below 100 percent")
)

// Subscription previews a deposit: fee = amount × rate, net = amount − fee, shares = net / nav.
// rate is a fraction (0.01 for 1%).
func Subscription(amount, nav, rate decimal.Decimal) (types.SubscriptionQuote, error) {
	if err := validate(amount, nav, rate); err != nil {
		return types.SubscriptionQuote{}, err
	}
	fee := amount.Mul(rate)
	net := amount.Sub(fee)
	return types.SubscriptionQuote{
		Amount:          amount,
		Fee:             fee,
		NetAmount:       net,
		EstimatedShares: net.DivRound(nav, quotientPrecision),
	}, nil
}

// Redemption previews a redemption: gross = shares × nav, fee = gross × rate, net = gross − fee.
func Redemption(shares, nav, rate decimal.Decimal) (types.RedemptionQuote, error) {
	if err := validate(shares, nav, rate); err != nil {
		return types.RedemptionQuote{}, err
	}
	gross := shares.Mul(nav)
	fee := gross.Mul(rate)
	return types.RedemptionQuote{
		SharesAmount: shares,
		GrossValue:   gross,
		Fee:          fee,
		NetValue:     gross.Sub(fee),
	}, nil
}

// MinimumOut derives the minimum-shares guard from a share estimate and a slippage tolerance
// given as a percentage: estimate × (1 − tolerance/100), truncated to share base units.
func MinimumOut(estimatedShares, tolerancePercent decimal.Decimal, shareDecimals uint8) (sdkmath.Int, error) {
	if !estimatedShares.IsPositive() {
		return sdkmath.ZeroInt(), ErrAmountNotPositive
	}
	fraction, err := utils.PercentToFraction(tolerancePercent)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return sdkmath.ZeroInt(), ErrToleranceTooLarge
	}
	guarded := estimatedShares.Mul(decimal.NewFromInt(1).Sub(fraction))
	minOut, err := utils.TruncateToBaseUnits(guarded, shareDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !minOut.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: estimate %s", ErrGuardRoundsToZero, estimatedShares)
	}
	return minOut, nil
}

func validate(amount, nav, rate decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if !nav.IsPositive() {
		return ErrNavUnavailable
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s", ErrRateOutOfRange, rate)
	}
	return nil
}
