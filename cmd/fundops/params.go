package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func openStore(ctx context.Context) (*state.Store, error) {
	dbCfg := config.LoadDatabaseConfig()
	if !dbCfg.Enabled() {
		return nil, errors.New("DB_HOST is not set, flow parameters need the database")
	}
	db, err := state.InitDB(dbCfg)
	if err != nil {
		return nil, err
	}
	store := state.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newParamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Manage the stored fee and slippage parameters used by the flows",
	}
	cmd.AddCommand(newParamsShowCmd(), newParamsSetCmd())
	return cmd
}

func newParamsShowCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the active parameter version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			params, err := store.GetActiveFlowParameters(ctx, name)
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("no active parameters stored for %q", name)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, params)
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "Parameter set name")
	return cmd
}

func newParamsSetCmd() *cobra.Command {
	var (
		name                     string
		entrance, exit, slippage string
		inactive                 bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a new parameter version",
		Long: `Set stores a new version of the named parameter set. Unset rates default to the
configured values. The new version becomes active unless --inactive is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := state.FlowParameters{
				ConfigName:         name,
				EntranceFeePercent: config.Defaults.EntranceFeePercent,
				ExitFeePercent:     config.Defaults.ExitFeePercent,
				SlippagePercent:    config.Defaults.SlippagePercent,
			}
			for _, f := range []struct {
				flag  string
				raw   string
				value *decimal.Decimal
			}{
				{"entrance", entrance, &params.EntranceFeePercent},
				{"exit", exit, &params.ExitFeePercent},
				{"slippage", slippage, &params.SlippagePercent},
			} {
				if f.raw == "" {
					continue
				}
				d, err := decimal.NewFromString(f.raw)
				if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(100)) {
					return fmt.Errorf("--%s must be a percentage in [0, 100), got %q", f.flag, f.raw)
				}
				*f.value = d
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			saved, err := store.SaveFlowParameters(ctx, params, !inactive)
			if err != nil {
				return err
			}
			return printJSON(cmd, saved)
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "Parameter set name")
	cmd.Flags().StringVar(&entrance, "entrance", "", "Entrance fee percent")
	cmd.Flags().StringVar(&exit, "exit", "", "Exit fee percent")
	cmd.Flags().StringVar(&slippage, "slippage", "", "Slippage tolerance percent")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Store without activating")
	return cmd
}
