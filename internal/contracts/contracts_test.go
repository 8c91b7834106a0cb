package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdc  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func TestCreateNewFundRoundTrip(t *testing.T) {
	data, err := PackCreateNewFund(CreateNewFundArgs{
		Owner:               owner,
		Name:                "Alpha",
		Symbol:              "ALP",
		DenominationAsset:   usdc,
		FeeManagerConfig:    []byte{0x01, 0x02},
		PolicyManagerConfig: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, FundDeployerABI.Methods[MethodCreateNewFund].ID, data[:4])

	args, err := UnpackCreateNewFund(data)
	require.NoError(t, err)
	assert.Equal(t, owner, args.Owner)
	assert.Equal(t, "Alpha", args.Name)
	assert.Equal(t, "ALP", args.Symbol)
	assert.Equal(t, usdc, args.DenominationAsset)
	assert.Equal(t, int64(0), args.SharesActionTimelock.Int64())
	assert.Equal(t, []byte{0x01, 0x02}, args.FeeManagerConfig)
	assert.Empty(t, args.PolicyManagerConfig)
}

func TestDecodeCall(t *testing.T) {
	data, err := PackRedeemSharesInKind(owner, big.NewInt(7))
	require.NoError(t, err)

	name, values, err := DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, MethodRedeemSharesInKind, name)
	assert.Equal(t, owner, values[0])
	assert.Equal(t, big.NewInt(7), values[1])
	assert.Empty(t, values[2])
	assert.Empty(t, values[3])

	data, err = PackApprove(owner, big.NewInt(5))
	require.NoError(t, err)
	name, _, err = DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, MethodApprove, name)

	_, _, err = DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)
	_, _, err = DecodeCall([]byte{0x01})
	assert.Error(t, err)
}

func TestModuleListEncoding(t *testing.T) {
	empty, err := EncodeModuleList(nil, nil)
	require.NoError(t, err)
	assert.Len(t, empty, 0)

	_, err = EncodeModuleList([]common.Address{owner}, nil)
	assert.Error(t, err)

	fee, err := EncodeRateFee(big.NewInt(1), common.Address{})
	require.NoError(t, err)
	blob, err := EncodeModuleList([]common.Address{owner, usdc}, [][]byte{fee, {0xaa}})
	require.NoError(t, err)

	modules, settings, err := DecodeModuleList(blob)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{owner, usdc}, modules)
	assert.Equal(t, [][]byte{fee, {0xaa}}, settings)
}

func TestNewAddressListEncoding(t *testing.T) {
	items := []common.Address{owner, usdc}
	settings, err := EncodeNewAddressList(ListUpdateNone, items)
	require.NoError(t, err)

	updateType, decoded, err := DecodeNewAddressList(settings)
	require.NoError(t, err)
	assert.Equal(t, ListUpdateNone, updateType)
	assert.Equal(t, items, decoded)
}

func TestFeeSettingsLayout(t *testing.T) {
	settings, err := EncodePerformanceFee(big.NewInt(2), big.NewInt(3), owner)
	require.NoError(t, err)
	values, err := UnpackPerformanceFee(settings)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{big.NewInt(2), big.NewInt(3), owner}, values)

	settings, err = EncodeExitFee(big.NewInt(4), big.NewInt(5), owner)
	require.NoError(t, err)
	values, err = UnpackExitFee(settings)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{big.NewInt(4), big.NewInt(5), owner}, values)

	settings, err = EncodeMinMaxInvestment(big.NewInt(10), big.NewInt(0))
	require.NoError(t, err)
	values, err = UnpackMinMaxInvestment(settings)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), values[0])
	assert.Equal(t, 0, values[1].(*big.Int).Sign())
}
