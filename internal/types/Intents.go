/*

This file contains the per-attempt intents and quotes of the investor flows.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SubscriptionIntent is one attempted deposit.
type SubscriptionIntent struct {
	Amount       decimal.Decimal `json:"amount"`
	BaseUnits    sdkmath.Int     `json:"base_units"`
	Asset        Asset           `json:"asset"`
	MinSharesOut sdkmath.Int     `json:"min_shares_out"`
}

// RedemptionIntent is one attempted redemption.
type RedemptionIntent struct {
	SharesAmount decimal.Decimal `json:"shares_amount"`
	BaseUnits    sdkmath.Int     `json:"base_units"`
	Recipient    common.Address  `json:"recipient"`
}

// SubscriptionQuote is the live estimate for a deposit.
type SubscriptionQuote struct {
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	EstimatedShares decimal.Decimal `json:"estimated_shares"`
}

// RedemptionQuote is the live estimate for a redemption.
type RedemptionQuote struct {
	SharesAmount decimal.Decimal `json:"shares_amount"`
	GrossValue   decimal.Decimal `json:"gross_value"`
	Fee          decimal.Decimal `json:"fee"`
	NetValue     decimal.Decimal `json:"net_value"`
}
