/*

This file contains the subset of the protocol ABIs that fundops calls.

Only the functions the orchestrator reads or transacts against are declared. The contracts
themselves are assumed correct; nothing here reimplements their logic.

*/

package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const fundDeployerJSON = `[
  {"type":"function","name":"createNewFund","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_fundOwner","type":"address"},
     {"name":"_fundName","type":"string"},
     {"name":"_fundSymbol","type":"string"},
     {"name":"_denominationAsset","type":"address"},
     {"name":"_sharesActionTimelock","type":"uint256"},
     {"name":"_feeManagerConfigData","type":"bytes"},
     {"name":"_policyManagerConfigData","type":"bytes"}],
   "outputs":[
     {"name":"comptrollerProxy_","type":"address"},
     {"name":"vaultProxy_","type":"address"}]}
]`

const comptrollerJSON = `[
  {"type":"function","name":"calcGrossShareValue","stateMutability":"view","inputs":[],
   "outputs":[{"name":"grossShareValue_","type":"uint256"}]},
  {"type":"function","name":"calcGav","stateMutability":"view","inputs":[],
   "outputs":[{"name":"gav_","type":"uint256"}]},
  {"type":"function","name":"getVaultProxy","stateMutability":"view","inputs":[],
   "outputs":[{"name":"vaultProxy_","type":"address"}]},
  {"type":"function","name":"getDenominationAsset","stateMutability":"view","inputs":[],
   "outputs":[{"name":"denominationAsset_","type":"address"}]},
  {"type":"function","name":"buyShares","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_investmentAmount","type":"uint256"},
     {"name":"_minSharesQuantity","type":"uint256"}],
   "outputs":[{"name":"sharesReceived_","type":"uint256"}]},
  {"type":"function","name":"redeemSharesInKind","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_recipient","type":"address"},
     {"name":"_sharesQuantity","type":"uint256"},
     {"name":"_additionalAssets","type":"address[]"},
     {"name":"_assetsToSkip","type":"address[]"}],
   "outputs":[
     {"name":"payoutAssets_","type":"address[]"},
     {"name":"payoutAmounts_","type":"uint256[]"}]}
]`

const vaultJSON = `[
  {"type":"function","name":"getAccessor","stateMutability":"view","inputs":[],
   "outputs":[{"name":"accessor_","type":"address"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]}
]`

const erc20JSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]}
]`

// Parsed ABIs.
var (
	FundDeployerABI = mustParse(fundDeployerJSON)
	ComptrollerABI  = mustParse(comptrollerJSON)
	VaultABI        = mustParse(vaultJSON)
	ERC20ABI        = mustParse(erc20JSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: invalid ABI definition: " + err.Error())
	}
	return parsed
}
