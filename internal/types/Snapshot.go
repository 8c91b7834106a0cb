/*

This file contains the read-only projections of on-chain state.

They are written only by the chain state reader and are replaced wholesale on every publish; no
other component mutates or merges them.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VaultSnapshot is the fund-wide state at a point in time.
type VaultSnapshot struct {
	NavPerShare     decimal.Decimal `json:"nav_per_share"`     // denomination asset per share
	GrossAssetValue decimal.Decimal `json:"gross_asset_value"` // denomination asset (AUM)
	AsOf            time.Time       `json:"as_of"`
}

// AllowanceRecord is the ERC20 allowance an investor has granted to the comptroller.
type AllowanceRecord struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  sdkmath.Int    `json:"amount"` // deposit asset base units
	AsOf    time.Time      `json:"as_of"`
}

// Covers reports whether the allowance is at least the given base-unit amount.
func (a AllowanceRecord) Covers(amount sdkmath.Int) bool {
	if a.Amount.IsNil() || amount.IsNil() {
		return false
	}
	return a.Amount.GTE(amount)
}

// AccountState holds the investor-side balances shown next to the forms.
type AccountState struct {
	Owner          common.Address  `json:"owner"`
	DepositBalance decimal.Decimal `json:"deposit_balance"` // deposit asset
	ShareBalance   decimal.Decimal `json:"share_balance"`   // fund shares
	AsOf           time.Time       `json:"as_of"`
}
