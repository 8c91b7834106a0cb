package main

import (
	"context"

	"github.com/onchainfund/fundops/internal/fund"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// withApp loads the configuration, wires the process and reads the vault once before run.
func withApp(cmd *cobra.Command, run func(ctx context.Context, a *app) error) error {
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

	if err := a.refresh(ctx); err != nil {
		return err
	}
	return run(ctx, a)
}

func parseHuman(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &fund.InvalidAmountError{Input: raw, Err: err}
	}
	return d, nil
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview a subscription or redemption at the current NAV",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "deposit <amount>",
		Short: "Estimate the shares a deposit of amount would mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseHuman(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				q, err := a.subscription.Quote(amount)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{
					"quote": q,
					"gate":  a.subscription.Gate(ctx, args[0]),
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "redeem <shares>",
		Short: "Estimate the assets a redemption of shares would return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := parseHuman(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *app) error {
				q, err := a.redemption.Quote(shares)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{
					"quote": q,
					"gate":  a.redemption.Gate(args[0]),
				})
			})
		},
	})
	return cmd
}

// txCmd builds a command that submits one investor transaction and optionally waits for it.
func txCmd(use, short string, submit func(ctx context.Context, a *app, amount string) (*fund.TxHandle, error)) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handle, err := submit(ctx, a, args[0])
				if err != nil {
					return err
				}
				if !wait {
					return printJSON(cmd, handle.Broadcast)
				}
				o, err := handle.Wait(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd, handle.Broadcast, o)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the transaction to be mined")
	return cmd
}

func newApproveCmd() *cobra.Command {
	return txCmd("approve <amount>", "Approve the comptroller to pull amount of the deposit asset",
		func(ctx context.Context, a *app, amount string) (*fund.TxHandle, error) {
			return a.subscription.Approve(ctx, amount)
		})
}

func newDepositCmd() *cobra.Command {
	return txCmd("deposit <amount>", "Buy shares with amount of the deposit asset",
		func(ctx context.Context, a *app, amount string) (*fund.TxHandle, error) {
			return a.subscription.Deposit(ctx, amount)
		})
}

func newRedeemCmd() *cobra.Command {
	return txCmd("redeem <shares>", "Redeem shares in kind for the underlying assets",
		func(ctx context.Context, a *app, shares string) (*fund.TxHandle, error) {
			return a.redemption.Redeem(ctx, shares)
		})
}
