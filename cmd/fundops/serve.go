package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onchainfund/fundops/internal/chainstate"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the vault and serve the JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.WebPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides WEB_PORT)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.store != nil {
		vaultAddr := a.cfg.VaultAddress
		a.reader.OnPublish(func(s chainstate.State) {
			if _, err := a.store.SaveSnapshot(context.Background(), vaultAddr, s.Snapshot); err != nil {
				appLogger.Error().Err(err).Msg("Failed to store vault snapshot")
			}
		})
	}
	if err := a.reader.Start(ctx); err != nil {
		return err
	}

	deps := web.Deps{
		Vault:         a.cfg.VaultAddress,
		State:         a.reader,
		Subscription:  a.subscription,
		Redemption:    a.redemption,
		Lifecycle:     a.lifecycle,
		Sender:        a.sender,
		TrackCreation: func(b types.Broadcast) { go a.trackCreation(ctx, b) },
	}
	if a.store != nil {
		deps.Journal = a.store
	}
	server := web.NewWebServer(a.cfg.WebPort, deps)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// trackCreation waits for a fund creation to be mined and records its outcome.
func (a *app) trackCreation(ctx context.Context, b types.Broadcast) {
	o := fund.AwaitOutcome(ctx, a.sender, b)
	if ctx.Err() != nil {
		return
	}
	a.recordOutcome(b, o)
	appLogger.Info().
		Str("txHash", b.Hash.Hex()).
		Str("status", string(o.Status)).
		Msg("Fund creation resolved")
}
