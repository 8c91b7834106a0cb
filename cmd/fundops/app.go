package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/onchainfund/fundops/internal/chainstate"
	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/metrics"
	"github.com/onchainfund/fundops/internal/registry"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/vault"
	"github.com/onchainfund/fundops/internal/wallet"
)

var appLogger = logger.GetForComponent("app")

// app holds the wired collaborators of one fundops process.
type app struct {
	cfg      *config.AppConfig
	eth      *ethclient.Client
	registry *registry.Static
	sender   *wallet.Client
	vault    *vault.Client
	asset    types.Asset
	reader   *chainstate.Reader
	store    *state.Store

	subscription *fund.SubscriptionFlow
	redemption   *fund.RedemptionFlow
	lifecycle    *fund.Lifecycle
}

// newApp dials the node and builds every component. The database is opened only when configured.
func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	reg, err := registry.Load(cfg.Network, cfg.RegistryFile)
	if err != nil {
		return nil, err
	}
	reg.WithExplorer(cfg.Endpoints.ExplorerURL)

	asset, err := reg.Asset(cfg.DepositAsset)
	if err != nil {
		return nil, &fund.UnsupportedAssetError{Symbol: cfg.DepositAsset, Network: cfg.Network, Err: err}
	}

	eth, err := ethclient.DialContext(ctx, cfg.Endpoints.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Endpoints.RPCURL, err)
	}
	a := &app{cfg: cfg, eth: eth, registry: reg, asset: asset}

	if err := a.checkChainID(ctx); err != nil {
		a.Close()
		return nil, err
	}

	signer, err := newSigner(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sender, err = wallet.NewClient(eth, signer, cfg.ChainID, wallet.Options{
		DefaultGasLimit: cfg.DefaultGasLimit,
		GasAdjustment:   cfg.GasAdjustment,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.vault, err = vault.NewClient(ctx, eth, cfg.VaultAddress, cfg.ComptrollerAddress)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.reader = chainstate.New(a.vault, chainstate.Options{
		Interval: cfg.PollInterval,
		Target:   chainstate.Target{Account: a.sender.Address(), DepositAsset: asset},
	})
	a.reader.OnError(func(error) { metrics.RecordPollError() })
	a.reader.OnPublish(func(s chainstate.State) { metrics.RecordSnapshot(s.Snapshot) })

	if cfg.Database.Enabled() {
		db, err := state.InitDB(cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = state.NewStore(db)
		if err := a.store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.applyStoredParameters(ctx)
	}

	if err := a.buildFlows(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) checkChainID(ctx context.Context) error {
	if id := a.registry.ChainID(); id != 0 && id != a.cfg.ChainID {
		return fmt.Errorf("network %s is chain %d, configured CHAIN_ID is %d", a.registry.Network(), id, a.cfg.ChainID)
	}
	remote, err := a.eth.ChainID(ctx)
	if err != nil {
		return &fund.NetworkReadError{Op: "chain id", Err: err}
	}
	if remote.Uint64() != a.cfg.ChainID {
		return fmt.Errorf("node at %s serves chain %d, configured CHAIN_ID is %d", a.cfg.Endpoints.RPCURL, remote.Uint64(), a.cfg.ChainID)
	}
	return nil
}

// applyStoredParameters replaces the configured rates with the active stored version, if any.
func (a *app) applyStoredParameters(ctx context.Context) {
	params, err := a.store.GetActiveFlowParameters(ctx, "")
	if errors.Is(err, state.ErrNotFound) {
		return
	}
	if err != nil {
		appLogger.Warn().Err(err).Msg("Failed to load stored flow parameters, keeping configured values")
		return
	}
	a.cfg.EntranceFeePercent = params.EntranceFeePercent
	a.cfg.ExitFeePercent = params.ExitFeePercent
	a.cfg.SlippagePercent = params.SlippagePercent
	appLogger.Info().Int("version", params.Version).Msg("Using stored flow parameters")
}

func (a *app) buildFlows() error {
	hooks := a.hooks()

	var err error
	a.subscription, err = fund.NewSubscriptionFlow(a.sender, a.reader, fund.SubscriptionConfig{
		Asset:              a.asset,
		Comptroller:        a.vault.Comptroller(),
		EntranceFeePercent: a.cfg.EntranceFeePercent,
		SlippagePercent:    a.cfg.SlippagePercent,
		Hooks:              hooks,
	})
	if err != nil {
		return err
	}
	a.redemption, err = fund.NewRedemptionFlow(a.sender, a.reader, fund.RedemptionConfig{
		Comptroller:    a.vault.Comptroller(),
		ExitFeePercent: a.cfg.ExitFeePercent,
		Hooks:          hooks,
	})
	if err != nil {
		return err
	}
	a.lifecycle = fund.NewLifecycle(a.registry, hooks)
	return nil
}

// hooks journal and count every broadcast and outcome.
func (a *app) hooks() fund.Hooks {
	return fund.Hooks{
		OnTransition: func(from, to fund.State) {
			appLogger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Flow transition")
		},
		OnBroadcast: func(b types.Broadcast) {
			metrics.RecordBroadcast(b)
			if a.store == nil {
				return
			}
			if err := a.store.RecordSubmission(context.Background(), b); err != nil {
				appLogger.Error().Err(err).Str("txHash", b.Hash.Hex()).Msg("Failed to journal submission")
			}
		},
		OnOutcome: a.recordOutcome,
		Explorer:  a.registry.ExplorerTxURL,
	}
}

func (a *app) recordOutcome(b types.Broadcast, o types.Outcome) {
	metrics.RecordOutcome(b, o)
	if a.store == nil {
		return
	}
	if err := a.store.RecordOutcome(context.Background(), b.ID, o); err != nil {
		appLogger.Error().Err(err).Str("txHash", b.Hash.Hex()).Msg("Failed to journal outcome")
	}
}

// refresh runs one synchronous poll and fails when it did not produce a snapshot.
func (a *app) refresh(ctx context.Context) error {
	a.reader.Trigger(ctx)
	if _, ok := a.reader.Snapshot(); !ok {
		if err := a.reader.LastError(); err != nil {
			return &fund.NetworkReadError{Op: "vault state", Err: err}
		}
		return &fund.NetworkReadError{Op: "vault state", Err: fund.ErrNoSnapshot}
	}
	return nil
}

func (a *app) Close() {
	if a.subscription != nil {
		a.subscription.Close()
	}
	if a.redemption != nil {
		a.redemption.Close()
	}
	if a.reader != nil {
		a.reader.Stop()
	}
	if a.sender != nil {
		a.sender.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.eth != nil {
		a.eth.Close()
	}
}

func newSigner(cfg *config.AppConfig) (wallet.Signer, error) {
	switch cfg.SignerMode {
	case config.SignerModeExternal:
		return wallet.NewExternalSigner(cfg.SignerEndpoint, common.Address{})
	default:
		return wallet.NewKeySigner(cfg.SignerPrivateKey)
	}
}
