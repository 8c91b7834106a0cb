package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader defines the read-only view of one vault, its comptroller and the tokens around it.
// Values are raw on-chain integers; callers scale them with the relevant decimals.
type Reader interface {
	// VaultProxy returns the vault (shares token) address.
	VaultProxy() common.Address

	// Comptroller returns the vault's accessor, the spender of deposits.
	Comptroller() common.Address

	// GrossShareValue returns the value of one whole share in denomination asset base units.
	GrossShareValue(ctx context.Context) (*big.Int, error)

	// GrossAssetValue returns the vault's total assets in denomination asset base units.
	GrossAssetValue(ctx context.Context) (*big.Int, error)

	// DenominationAsset returns the asset NAV is priced in.
	DenominationAsset(ctx context.Context) (common.Address, error)

	// TokenDecimals returns an ERC20's decimals.
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)

	// TokenBalance returns an ERC20 balance.
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)

	// Allowance returns the ERC20 allowance owner granted to spender.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// ShareBalance returns the vault shares held by account.
	ShareBalance(ctx context.Context, account common.Address) (*big.Int, error)
}
