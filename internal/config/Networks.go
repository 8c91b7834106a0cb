/*

This file contains the built-in network table.

Only well-known, immutable deployments are listed here. Fee and policy module
addresses differ per protocol release and are supplied through the REGISTRY_FILE
overlay (see internal/registry). A network missing from this table can be
declared entirely in the overlay.

*/

package config

// AssetEntry describes a supported denomination/deposit asset.
type AssetEntry struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// NetworkEntry is the static description of one network.
type NetworkEntry struct {
	ChainID      uint64            `yaml:"chainId"`
	ExplorerURL  string            `yaml:"explorerUrl"`
	FundDeployer string            `yaml:"fundDeployer"`
	Assets       []AssetEntry      `yaml:"assets"`
	FeeModules   map[string]string `yaml:"feeModules"`
	PolicyModule map[string]string `yaml:"policyModules"`
}

var (
	Networks = map[string]NetworkEntry{
		"mainnet": {
			ChainID:      1,
			ExplorerURL:  "https://etherscan.io",
			FundDeployer: "0x4f1C53F096533C04d8157EFB6Bca3eb22ddC6360",
			Assets: []AssetEntry{
				{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
				{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
			},
		},
	}
)
