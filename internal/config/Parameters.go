/*

This file contains the default parameters for fundops.

The fee defaults mirror the rates a new fund is offered in the creation form.
The subscription and redemption fees are what the quote preview assumes the vault charges.

*/

package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parameters is the set of tunable defaults. LoadConfig falls back to these values.
type Parameters struct {
	// PollInterval is how often the chain state poller refreshes NAV, balances and allowance.
	PollInterval time.Duration

	// EntranceFeePercent is the fee charged on subscriptions, as a percentage.
	EntranceFeePercent decimal.Decimal
	// ExitFeePercent is the fee charged on redemptions, as a percentage.
	ExitFeePercent decimal.Decimal
	// SlippagePercent is the tolerance applied to the share estimate to derive minSharesOut.
	SlippagePercent decimal.Decimal

	// ManagementFeePercent, PerformanceFeePercent and the form-level fee defaults
	// pre-fill a new draft.
	ManagementFeePercent  decimal.Decimal
	PerformanceFeePercent decimal.Decimal
	DraftEntrancePercent  decimal.Decimal
	DraftExitPercent      decimal.Decimal
	// HighWaterMark is the initial share price reference for the performance fee.
	HighWaterMark decimal.Decimal

	// DepositLimitMin and DepositLimitMax pre-fill the deposit limits policy, in denomination units.
	DepositLimitMin decimal.Decimal
	DepositLimitMax decimal.Decimal

	DepositAsset  string
	GasLimit      uint64
	GasAdjustment float64
	WebPort       string
}

// Defaults provides a baseline set of parameters.
var Defaults = Parameters{
	PollInterval: 30 * time.Second, // Refresh on-chain state every 30 seconds.
	// Rationale: NAV moves slowly between blocks. Shorter intervals burn RPC quota
	// without improving the quote, and input changes trigger an immediate refresh anyway.

	EntranceFeePercent: decimal.NewFromInt(1), // 1% entrance fee.
	// Rationale: Matches the fee configured on the reference vault.

	ExitFeePercent: decimal.RequireFromString("0.5"), // 0.5% exit fee.

	SlippagePercent: decimal.RequireFromString("0.5"), // Accept 0.5% fewer shares than quoted.
	// Rationale: NAV can move between the quote and inclusion. A zero tolerance makes
	// deposits revert on any tick, a large one defeats minimum-output protection.

	ManagementFeePercent:  decimal.NewFromInt(2),
	PerformanceFeePercent: decimal.NewFromInt(20),
	DraftEntrancePercent:  decimal.NewFromInt(1),
	DraftExitPercent:      decimal.NewFromInt(1),
	HighWaterMark:         decimal.NewFromInt(1),

	DepositLimitMin: decimal.NewFromInt(1000),
	DepositLimitMax: decimal.NewFromInt(100000),

	DepositAsset:  "USDC",
	GasLimit:      500000, // Fallback when estimation fails.
	GasAdjustment: 1.2,    // 20% headroom on estimated gas.
	WebPort:       "8080",
}
