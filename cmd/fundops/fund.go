package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/registry"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var (
		draftPath    string
		network      string
		registryFile string
		owner        string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a fund draft into the deployment call without sending it",
		Long: `Encode reads a YAML fund draft and prints the fee and policy manager configuration
and the createNewFund call data. It needs no node connection or signer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if network == "" {
				network = os.Getenv("NETWORK")
			}
			if registryFile == "" {
				registryFile = os.Getenv("REGISTRY_FILE")
			}
			var ownerAddr common.Address
			if owner != "" {
				if !common.IsHexAddress(owner) {
					return fmt.Errorf("--owner %q is not an address", owner)
				}
				ownerAddr = common.HexToAddress(owner)
			}

			draft, err := readDraft(draftPath)
			if err != nil {
				return err
			}
			reg, err := registry.Load(network, registryFile)
			if err != nil {
				return err
			}

			call, encoded, err := fund.NewLifecycle(reg, fund.Hooks{}).Prepare(draft, ownerAddr)
			if err != nil {
				return err
			}
			return printJSON(cmd, encodeOutput{
				To:                  call.To,
				Data:                call.Data,
				FeeManagerConfig:    encoded.FeeManagerConfig,
				PolicyManagerConfig: encoded.PolicyManagerConfig,
				Fees:                toModuleOutput(encoded.Fees),
				Policies:            toModuleOutput(encoded.Policies),
			})
		},
	}
	cmd.Flags().StringVar(&draftPath, "draft", "", "Path to the YAML fund draft")
	cmd.Flags().StringVar(&network, "network", "", "Network name (defaults to NETWORK)")
	cmd.Flags().StringVar(&registryFile, "registry", "", "Registry overlay file (defaults to REGISTRY_FILE)")
	cmd.Flags().StringVar(&owner, "owner", "", "Fund owner address encoded into the call")
	cmd.AddCommand(newTemplateCmd())
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var asset string

	return &cobra.Command{
		Use:   "template",
		Short: "Print a draft with every fee and policy listed and disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asset == "" {
				asset = strings.ToUpper(os.Getenv("DEPOSIT_ASSET"))
			}
			if asset == "" {
				asset = "USDC"
			}
			out, err := marshalDraft(templateDraft(asset))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newCreateCmd() *cobra.Command {
	var (
		draftPath string
		wait      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy a new fund from a YAML draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := readDraft(draftPath)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.lifecycle.CreateFund(ctx, draft, a.sender)
			if err != nil {
				return err
			}
			if !wait {
				return printJSON(cmd, b)
			}
			o := fund.AwaitOutcome(ctx, a.sender, b)
			a.recordOutcome(b, o)
			return printResult(cmd, b, o)
		},
	}
	cmd.Flags().StringVar(&draftPath, "draft", "", "Path to the YAML fund draft")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the transaction to be mined")
	return cmd
}

type txResult struct {
	Broadcast types.Broadcast `json:"broadcast"`
	Outcome   types.Outcome   `json:"outcome"`
}

// printResult prints the broadcast with its outcome and fails unless the transaction confirmed.
func printResult(cmd *cobra.Command, b types.Broadcast, o types.Outcome) error {
	if err := printJSON(cmd, txResult{Broadcast: b, Outcome: o}); err != nil {
		return err
	}
	if o.Status != types.OutcomeConfirmed {
		return fmt.Errorf("transaction %s %s: %s", b.Hash.Hex(), strings.ToLower(string(o.Status)), o.Message)
	}
	return nil
}
