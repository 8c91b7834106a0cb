package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// EncodedModuleSetting is one (module address, encoded settings) pair of a manager configuration.
// It is produced by the encoder and consumed once by the lifecycle orchestrator.
type EncodedModuleSetting struct {
	Module   common.Address `json:"module"`
	Settings []byte         `json:"settings"`
}

// EncodedConfig holds the two configuration blobs the vault deployment call expects, plus the
// per-module entries they were composed from (in declaration order).
type EncodedConfig struct {
	FeeManagerConfig    []byte                 `json:"fee_manager_config"`
	PolicyManagerConfig []byte                 `json:"policy_manager_config"`
	Fees                []EncodedModuleSetting `json:"fees"`
	Policies            []EncodedModuleSetting `json:"policies"`
}
