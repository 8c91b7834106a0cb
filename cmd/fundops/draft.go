package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/types"
	"gopkg.in/yaml.v3"
)

// readDraft loads a fund draft from a YAML file.
func readDraft(path string) (types.FundDraft, error) {
	var draft types.FundDraft
	if path == "" {
		return draft, fmt.Errorf("--draft is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return draft, fmt.Errorf("failed to read draft %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &draft); err != nil {
		return draft, fmt.Errorf("failed to parse draft %s: %w", path, err)
	}
	return draft, nil
}

// templateDraft is the creation form's starting point: every fee and policy listed, all disabled,
// pre-filled with the default rates and limits.
func templateDraft(asset string) types.FundDraft {
	d := config.Defaults
	return types.FundDraft{
		Name:              "My Fund",
		Symbol:            "MYF",
		DenominationAsset: asset,
		Fees: []types.FeeSetting{
			{Kind: types.FeeManagement, Rate: d.ManagementFeePercent},
			{Kind: types.FeePerformance, Rate: d.PerformanceFeePercent, HighWaterMark: d.HighWaterMark},
			{Kind: types.FeeEntrance, Rate: d.DraftEntrancePercent},
			{Kind: types.FeeExit, Rate: d.DraftExitPercent},
		},
		Policies: []types.PolicySetting{
			{Kind: types.PolicyDepositorWhitelist},
			{Kind: types.PolicyDepositLimits, Min: d.DepositLimitMin, Max: d.DepositLimitMax},
			{Kind: types.PolicyShareTransferWhitelist},
		},
	}
}

func marshalDraft(draft types.FundDraft) ([]byte, error) {
	return yaml.Marshal(draft)
}

type moduleOutput struct {
	Module   common.Address `json:"module"`
	Settings hexutil.Bytes  `json:"settings"`
}

type encodeOutput struct {
	To                  common.Address `json:"to"`
	Data                hexutil.Bytes  `json:"data"`
	FeeManagerConfig    hexutil.Bytes  `json:"fee_manager_config"`
	PolicyManagerConfig hexutil.Bytes  `json:"policy_manager_config"`
	Fees                []moduleOutput `json:"fees"`
	Policies            []moduleOutput `json:"policies"`
}

func toModuleOutput(entries []types.EncodedModuleSetting) []moduleOutput {
	out := make([]moduleOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, moduleOutput{Module: e.Module, Settings: e.Settings})
	}
	return out
}
