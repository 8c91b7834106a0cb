/*

This is the descriptor for assets the fund can be denominated in or accept as deposits.

*/

package types

import "github.com/ethereum/go-ethereum/common"

type Asset struct {
	Symbol   string         `json:"symbol" yaml:"symbol"`     // e.g., "USDC"
	Address  common.Address `json:"address" yaml:"address"`   // ERC20 contract
	Decimals uint8          `json:"decimals" yaml:"decimals"` // e.g., 6 = 1 USDC is 1000000 base units
}
