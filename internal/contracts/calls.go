package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Method names used by the flows.
const (
	MethodCreateNewFund        = "createNewFund"
	MethodApprove              = "approve"
	MethodAllowance            = "allowance"
	MethodBalanceOf            = "balanceOf"
	MethodDecimals             = "decimals"
	MethodBuyShares            = "buyShares"
	MethodRedeemSharesInKind   = "redeemSharesInKind"
	MethodCalcGrossShareValue  = "calcGrossShareValue"
	MethodCalcGav              = "calcGav"
	MethodGetAccessor          = "getAccessor"
	MethodGetVaultProxy        = "getVaultProxy"
	MethodGetDenominationAsset = "getDenominationAsset"
)

// CreateNewFundArgs are the arguments of FundDeployer.createNewFund.
type CreateNewFundArgs struct {
	Owner                common.Address
	Name                 string
	Symbol               string
	DenominationAsset    common.Address
	SharesActionTimelock *big.Int
	FeeManagerConfig     []byte
	PolicyManagerConfig  []byte
}

// PackCreateNewFund encodes the vault deployment call.
func PackCreateNewFund(args CreateNewFundArgs) ([]byte, error) {
	timelock := args.SharesActionTimelock
	if timelock == nil {
		timelock = new(big.Int)
	}
	data, err := FundDeployerABI.Pack(MethodCreateNewFund,
		args.Owner,
		args.Name,
		args.Symbol,
		args.DenominationAsset,
		timelock,
		nonNil(args.FeeManagerConfig),
		nonNil(args.PolicyManagerConfig),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", MethodCreateNewFund, err)
	}
	return data, nil
}

// UnpackCreateNewFund decodes createNewFund call data (without the selector check).
func UnpackCreateNewFund(data []byte) (CreateNewFundArgs, error) {
	method, err := FundDeployerABI.MethodById(data)
	if err != nil || method.Name != MethodCreateNewFund {
		return CreateNewFundArgs{}, fmt.Errorf("call data is not %s", MethodCreateNewFund)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return CreateNewFundArgs{}, fmt.Errorf("failed to unpack %s: %w", MethodCreateNewFund, err)
	}
	return CreateNewFundArgs{
		Owner:                values[0].(common.Address),
		Name:                 values[1].(string),
		Symbol:               values[2].(string),
		DenominationAsset:    values[3].(common.Address),
		SharesActionTimelock: values[4].(*big.Int),
		FeeManagerConfig:     values[5].([]byte),
		PolicyManagerConfig:  values[6].([]byte),
	}, nil
}

// PackApprove encodes ERC20.approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack(MethodApprove, spender, amount)
}

// PackBuyShares encodes Comptroller.buyShares(investmentAmount, minSharesQuantity).
func PackBuyShares(investment, minShares *big.Int) ([]byte, error) {
	return ComptrollerABI.Pack(MethodBuyShares, investment, minShares)
}

// PackRedeemSharesInKind encodes a full in-kind redemption with no additional or skipped assets.
func PackRedeemSharesInKind(recipient common.Address, shares *big.Int) ([]byte, error) {
	return ComptrollerABI.Pack(MethodRedeemSharesInKind, recipient, shares, []common.Address{}, []common.Address{})
}

// DecodeCall returns the method name and decoded inputs of call data against the known ABIs.
func DecodeCall(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("call data too short: %d bytes", len(data))
	}
	for _, parsed := range []abi.ABI{FundDeployerABI, ComptrollerABI, ERC20ABI} {
		method, err := parsed.MethodById(data)
		if err != nil {
			continue
		}
		values, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return "", nil, fmt.Errorf("failed to unpack %s: %w", method.Name, err)
		}
		return method.Name, values, nil
	}
	return "", nil, fmt.Errorf("unknown selector %x", data[:4])
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
