package fund

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/encoder"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/rs/zerolog"
)

// MaxSymbolLength bounds the share token symbol.
const MaxSymbolLength = 16

var (
	ErrNameRequired   = errors.New("fund name is required")
	ErrSymbolRequired = errors.New("fund symbol is required")
	ErrSymbolTooLong  = fmt.Errorf("fund symbol must be at most %d characters", MaxSymbolLength)
)

// Registry is what the lifecycle needs from the network registry.
type Registry interface {
	encoder.ModuleResolver
	Network() string
	FundDeployer() (common.Address, error)
	ExplorerTxURL(hash common.Hash) string
}

// Lifecycle builds and submits the vault creation transaction.
// Idle → Encoding → Submitting → Broadcast, or Failed from Encoding or Submitting.
type Lifecycle struct {
	registry Registry
	encoder  *encoder.Encoder
	machine  *machine
	log      zerolog.Logger

	onBroadcast func(types.Broadcast)
}

// NewLifecycle builds a lifecycle over registry. Only OnTransition and OnBroadcast of hooks are
// used: confirmation tracking is left to the caller.
func NewLifecycle(registry Registry, hooks Hooks) *Lifecycle {
	return &Lifecycle{
		registry:    registry,
		encoder:     encoder.New(registry),
		machine:     newMachine(hooks.OnTransition),
		log:         logger.GetForComponent("lifecycle"),
		onBroadcast: hooks.OnBroadcast,
	}
}

// State returns the current state and the reason of the last failure.
func (l *Lifecycle) State() (State, error) {
	return l.machine.current()
}

// CreateFund encodes draft and broadcasts createNewFund from sender, who becomes the fund owner.
// It returns as soon as the node accepted the transaction; confirmation is left to the caller.
func (l *Lifecycle) CreateFund(ctx context.Context, draft types.FundDraft, sender wallet.Sender) (types.Broadcast, error) {
	if sender == nil {
		return types.Broadcast{}, ErrNoSender
	}
	if err := l.machine.acquire(StateEncoding, StateIdle, StateBroadcast, StateFailed); err != nil {
		return types.Broadcast{}, err
	}

	call, err := l.prepare(draft, sender.Address())
	if err != nil {
		return types.Broadcast{}, l.failed(err)
	}

	l.machine.move(StateSubmitting)
	tx, err := sender.Send(ctx, call)
	if err != nil {
		return types.Broadcast{}, l.failed(classifySendError(types.ActionCreateFund, err))
	}

	b := types.Broadcast{
		ID:          uuid.NewString(),
		Action:      types.ActionCreateFund,
		Hash:        tx.Hash(),
		From:        sender.Address(),
		To:          call.To,
		SubmittedAt: time.Now().UTC(),
		ExplorerURL: l.registry.ExplorerTxURL(tx.Hash()),
		Input:       call.Data,
	}
	l.machine.move(StateBroadcast)
	if l.onBroadcast != nil {
		l.onBroadcast(b)
	}

	l.log.Info().
		Str("txHash", b.Hash.Hex()).
		Str("owner", b.From.Hex()).
		Str("name", draft.Name).
		Msg("Fund creation broadcast")
	return b, nil
}

// Prepare runs validation and encoding without sending, for dry runs.
func (l *Lifecycle) Prepare(draft types.FundDraft, owner common.Address) (wallet.Call, types.EncodedConfig, error) {
	asset, err := l.resolveAsset(draft.DenominationAsset)
	if err != nil {
		return wallet.Call{}, types.EncodedConfig{}, err
	}
	name, symbol, err := validateIdentity(draft)
	if err != nil {
		return wallet.Call{}, types.EncodedConfig{}, err
	}
	encoded, err := l.encoder.Encode(draft)
	if err != nil {
		return wallet.Call{}, types.EncodedConfig{}, err
	}
	deployer, err := l.registry.FundDeployer()
	if err != nil {
		return wallet.Call{}, types.EncodedConfig{}, &ConfigurationError{Field: "fund_deployer", Err: err}
	}

	data, err := contracts.PackCreateNewFund(contracts.CreateNewFundArgs{
		Owner:                owner,
		Name:                 name,
		Symbol:               symbol,
		DenominationAsset:    asset.Address,
		SharesActionTimelock: new(big.Int),
		FeeManagerConfig:     encoded.FeeManagerConfig,
		PolicyManagerConfig:  encoded.PolicyManagerConfig,
	})
	if err != nil {
		return wallet.Call{}, types.EncodedConfig{}, err
	}
	return wallet.Call{To: deployer, Data: data}, encoded, nil
}

func (l *Lifecycle) prepare(draft types.FundDraft, owner common.Address) (wallet.Call, error) {
	call, _, err := l.Prepare(draft, owner)
	return call, err
}

func (l *Lifecycle) resolveAsset(symbol string) (types.Asset, error) {
	asset, err := l.registry.Asset(symbol)
	if err != nil {
		return types.Asset{}, &UnsupportedAssetError{Symbol: symbol, Network: l.registry.Network(), Err: err}
	}
	return asset, nil
}

func (l *Lifecycle) failed(err error) error {
	l.log.Warn().Err(err).Msg("Fund creation failed")
	l.machine.fail(StateFailed, err)
	return err
}

func validateIdentity(draft types.FundDraft) (string, string, error) {
	name, symbol := draft.TrimmedIdentity()
	switch {
	case name == "":
		return "", "", &ConfigurationError{Field: "name", Err: ErrNameRequired}
	case symbol == "":
		return "", "", &ConfigurationError{Field: "symbol", Err: ErrSymbolRequired}
	case utf8.RuneCountInString(symbol) > MaxSymbolLength:
		return "", "", &ConfigurationError{Field: "symbol", Err: ErrSymbolTooLong}
	}
	return name, symbol, nil
}
