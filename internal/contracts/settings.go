package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ListUpdateType is the update policy of a list created through an address-list policy.
type ListUpdateType uint8

const (
	// ListUpdateNone creates an immutable list. Re-submitting a configuration creates a fresh
	// list with exactly the given items, so entries never accumulate.
	ListUpdateNone ListUpdateType = iota
	ListUpdateAddOnly
	ListUpdateRemoveOnly
	ListUpdateAddAndRemove
)

var (
	uint8T     = mustType("uint8")
	uint256T   = mustType("uint256")
	uint256ArT = mustType("uint256[]")
	addressT   = mustType("address")
	addressArT = mustType("address[]")
	bytesArT   = mustType("bytes[]")

	// (address[] modules, bytes[] settings) shared by the fee and policy manager configs.
	moduleListArgs = abi.Arguments{{Type: addressArT}, {Type: bytesArT}}

	rateRecipientArgs = abi.Arguments{{Type: uint256T}, {Type: addressT}}
	performanceArgs   = abi.Arguments{{Type: uint256T}, {Type: uint256T}, {Type: addressT}}
	exitFeeArgs       = abi.Arguments{{Type: uint256T}, {Type: uint256T}, {Type: addressT}}
	minMaxArgs        = abi.Arguments{{Type: uint256T}, {Type: uint256T}}
	addressListArgs   = abi.Arguments{{Type: uint256ArT}, {Type: bytesArT}}
	newListArgs       = abi.Arguments{{Type: uint8T}, {Type: addressArT}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("contracts: invalid ABI type " + t + ": " + err.Error())
	}
	return typ
}

// EncodeModuleList composes a manager config blob from per-module settings.
// An empty module list encodes to zero-length bytes, which the managers treat as "no modules".
func EncodeModuleList(modules []common.Address, settings [][]byte) ([]byte, error) {
	if len(modules) != len(settings) {
		return nil, fmt.Errorf("module list mismatch: %d modules, %d settings", len(modules), len(settings))
	}
	if len(modules) == 0 {
		return []byte{}, nil
	}
	return moduleListArgs.Pack(modules, settings)
}

// DecodeModuleList is the inverse of EncodeModuleList.
func DecodeModuleList(data []byte) ([]common.Address, [][]byte, error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	values, err := moduleListArgs.Unpack(data)
	if err != nil {
		return nil, nil, err
	}
	return values[0].([]common.Address), values[1].([][]byte), nil
}

// EncodeRateFee encodes the settings of the management and entrance fees.
func EncodeRateFee(rate *big.Int, recipient common.Address) ([]byte, error) {
	return rateRecipientArgs.Pack(rate, recipient)
}

// EncodePerformanceFee encodes the performance fee settings.
func EncodePerformanceFee(rate, highWaterMark *big.Int, recipient common.Address) ([]byte, error) {
	return performanceArgs.Pack(rate, highWaterMark, recipient)
}

// EncodeExitFee encodes the exit fee settings for in-kind and specific-asset redemptions.
func EncodeExitFee(inKindRate, specificAssetsRate *big.Int, recipient common.Address) ([]byte, error) {
	return exitFeeArgs.Pack(inKindRate, specificAssetsRate, recipient)
}

// EncodeMinMaxInvestment encodes deposit limits in denomination base units.
func EncodeMinMaxInvestment(min, max *big.Int) ([]byte, error) {
	return minMaxArgs.Pack(min, max)
}

// EncodeNewAddressList encodes an address-list policy that creates one new list.
func EncodeNewAddressList(updateType ListUpdateType, items []common.Address) ([]byte, error) {
	list, err := newListArgs.Pack(uint8(updateType), items)
	if err != nil {
		return nil, err
	}
	return addressListArgs.Pack([]*big.Int{}, [][]byte{list})
}

// DecodeNewAddressList returns the update type and items of the first new list in settings.
func DecodeNewAddressList(settings []byte) (ListUpdateType, []common.Address, error) {
	values, err := addressListArgs.Unpack(settings)
	if err != nil {
		return 0, nil, err
	}
	lists := values[1].([][]byte)
	if len(lists) == 0 {
		return 0, nil, fmt.Errorf("address list policy has no new lists")
	}
	inner, err := newListArgs.Unpack(lists[0])
	if err != nil {
		return 0, nil, err
	}
	return ListUpdateType(inner[0].(uint8)), inner[1].([]common.Address), nil
}

// UnpackRateFee decodes management and entrance fee settings.
func UnpackRateFee(settings []byte) ([]interface{}, error) {
	return rateRecipientArgs.Unpack(settings)
}

func UnpackPerformanceFee(settings []byte) ([]interface{}, error) {
	return performanceArgs.Unpack(settings)
}

func UnpackExitFee(settings []byte) ([]interface{}, error) {
	return exitFeeArgs.Unpack(settings)
}

func UnpackMinMaxInvestment(settings []byte) ([]interface{}, error) {
	return minMaxArgs.Unpack(settings)
}
