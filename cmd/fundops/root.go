package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevelFlag string
	envFileFlag  string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fundops",
		Short: "Create tokenized funds and subscribe to or redeem from them",
		Long: `fundops deploys on-chain funds and runs investor subscriptions and redemptions.

Configuration is read from the environment (and a .env file). See README for the variables.

Example usage:
  fundops encode --draft fund.yaml
  fundops create --draft fund.yaml
  fundops quote deposit 1000
  fundops approve 1000 --wait
  fundops deposit 1000 --wait
  fundops redeem 25.5
  fundops serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFileFlag != "" {
				if err := loadEnvFile(envFileFlag); err != nil {
					return err
				}
			}
			level := logLevelFlag
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logger.Initialize(level, logger.Options{
				JSON:     os.Getenv("LOG_FORMAT") == "json",
				FilePath: os.Getenv("LOG_FILE"),
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Additional .env file to load")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newQuoteCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newDepositCmd())
	cmd.AddCommand(newRedeemCmd())
	cmd.AddCommand(newParamsCmd())
	return cmd
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
