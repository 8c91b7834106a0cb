package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAddress   = errors.New("contract address is invalid")
	ErrInvalidBackend   = errors.New("contract backend is invalid")
	ErrReadFailed       = errors.New("contract read failed")
	ErrInvalidResponse  = errors.New("response data is invalid")
	ErrVaultMismatch    = errors.New("comptroller does not belong to the vault")
	ErrNoAccessorLookup = errors.New("comptroller could not be resolved from the vault")
)

var vaultLogger = logger.GetForComponent("vault_client")

// Client reads vault state through bound contracts.
type Client struct {
	caller      bind.ContractCaller
	vaultProxy  common.Address
	comptroller common.Address

	vault      *bind.BoundContract
	controller *bind.BoundContract

	mu     sync.Mutex
	tokens map[common.Address]*bind.BoundContract
}

var _ Reader = (*Client)(nil)

// NewClient creates a vault reader. When comptroller is the zero address it is resolved through
// the vault's getAccessor; otherwise the given comptroller is checked against getVaultProxy.
func NewClient(ctx context.Context, caller bind.ContractCaller, vaultProxy, comptroller common.Address) (*Client, error) {
	if caller == nil {
		return nil, ErrInvalidBackend
	}
	if vaultProxy == (common.Address{}) {
		return nil, fmt.Errorf("%w: vault proxy is the zero address", ErrInvalidAddress)
	}

	c := &Client{
		caller:     caller,
		vaultProxy: vaultProxy,
		vault:      bind.NewBoundContract(vaultProxy, contracts.VaultABI, caller, nil, nil),
		tokens:     make(map[common.Address]*bind.BoundContract),
	}

	if comptroller == (common.Address{}) {
		accessor, err := c.callAddress(ctx, c.vault, contracts.MethodGetAccessor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAccessorLookup, err)
		}
		if accessor == (common.Address{}) {
			return nil, ErrNoAccessorLookup
		}
		comptroller = accessor
		vaultLogger.Info().Str("vault", vaultProxy.Hex()).Str("comptroller", comptroller.Hex()).Msg("Resolved comptroller from vault accessor")
	}

	c.comptroller = comptroller
	c.controller = bind.NewBoundContract(comptroller, contracts.ComptrollerABI, caller, nil, nil)

	owner, err := c.callAddress(ctx, c.controller, contracts.MethodGetVaultProxy)
	if err != nil {
		return nil, err
	}
	if owner != vaultProxy {
		return nil, fmt.Errorf("%w: comptroller %s serves %s, not %s", ErrVaultMismatch, comptroller.Hex(), owner.Hex(), vaultProxy.Hex())
	}

	return c, nil
}

func (c *Client) VaultProxy() common.Address { return c.vaultProxy }

func (c *Client) Comptroller() common.Address { return c.comptroller }

func (c *Client) GrossShareValue(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, c.controller, contracts.MethodCalcGrossShareValue)
}

func (c *Client) GrossAssetValue(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, c.controller, contracts.MethodCalcGav)
}

func (c *Client) DenominationAsset(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, c.controller, contracts.MethodGetDenominationAsset)
}

func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, c.token(token), contracts.MethodDecimals)
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals of %s", ErrInvalidResponse, token.Hex())
	}
	return decimals, nil
}

func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.token(token), contracts.MethodBalanceOf, account)
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.token(token), contracts.MethodAllowance, owner, spender)
}

func (c *Client) ShareBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.vault, contracts.MethodBalanceOf, account)
}

func (c *Client) token(address common.Address) *bind.BoundContract {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bound, ok := c.tokens[address]; ok {
		return bound
	}
	bound := bind.NewBoundContract(address, contracts.ERC20ABI, c.caller, nil, nil)
	c.tokens[address] = bound
	return bound
}

func (c *Client) call(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFailed, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrInvalidResponse, method)
	}
	return out, nil
}

func (c *Client) callUint(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, contract, method, params...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: %s is not a uint256", ErrInvalidResponse, method)
	}
	return value, nil
}

func (c *Client) callAddress(ctx context.Context, contract *bind.BoundContract, method string) (common.Address, error) {
	out, err := c.call(ctx, contract, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", ErrInvalidResponse, method)
	}
	return addr, nil
}
