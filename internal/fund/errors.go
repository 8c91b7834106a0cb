package fund

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/encoder"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
)

// ErrFlowBusy is returned synchronously when a mutating call arrives while the flow already has
// one in flight. The call is rejected, never queued.
var ErrFlowBusy = errors.New("another transaction from this flow is still in flight")

var (
	ErrNoSnapshot      = errors.New("vault state has not been read yet")
	ErrAccountMismatch = errors.New("allowance record belongs to a different account")
	ErrFlowClosed      = errors.New("flow is closed")
	ErrNoSender        = errors.New("no signer is connected")
)

// ConfigurationError reports bad or missing manager input. Fix the draft and resubmit.
type ConfigurationError = encoder.ConfigurationError

// UnsupportedAssetError reports an asset missing from the network registry.
type UnsupportedAssetError struct {
	Symbol  string
	Network string
	Err     error
}

func (e *UnsupportedAssetError) Error() string {
	return fmt.Sprintf("asset %q is not supported on %s", e.Symbol, e.Network)
}

func (e *UnsupportedAssetError) Unwrap() error { return e.Err }

// InvalidAmountError reports an amount that is empty, not positive, or finer than the asset's precision.
type InvalidAmountError struct {
	Input string
	Err   error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %v", e.Input, e.Err)
}

func (e *InvalidAmountError) Unwrap() error { return e.Err }

// InsufficientAllowanceError is returned when a deposit is attempted before an approval covering
// it has confirmed on-chain. Run the approval first.
type InsufficientAllowanceError struct {
	Required  sdkmath.Int
	Available sdkmath.Int
	Asset     string
}

func (e *InsufficientAllowanceError) Error() string {
	available := "0"
	if !e.Available.IsNil() {
		available = e.Available.String()
	}
	return fmt.Sprintf("allowance of %s %s base units does not cover the requested %s; approve first",
		available, e.Asset, e.Required.String())
}

// WalletRejectedError is returned when the account holder declines to sign.
type WalletRejectedError struct {
	Action types.Action
	Err    error
}

func (e *WalletRejectedError) Error() string {
	return fmt.Sprintf("%s was rejected in the wallet", actionName(e.Action))
}

func (e *WalletRejectedError) Unwrap() error { return e.Err }

// Phase tells whether a chain failure happened before or after the transaction was sent.
type Phase string

const (
	// PhaseBroadcast means nothing was sent. Retrying is safe.
	PhaseBroadcast Phase = "broadcast"
	// PhaseConfirmation means the transaction was mined and reverted. Check funds and vault state.
	PhaseConfirmation Phase = "confirmation"
)

// ChainExecutionError reports a transaction that failed to broadcast or reverted on-chain.
type ChainExecutionError struct {
	Action types.Action
	Phase  Phase
	Hash   common.Hash
	Reason string
	Err    error
}

func (e *ChainExecutionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason given"
	}
	if e.Phase == PhaseConfirmation {
		return fmt.Sprintf("%s reverted on-chain in %s: %s", actionName(e.Action), e.Hash.Hex(), reason)
	}
	return fmt.Sprintf("%s could not be sent, nothing was broadcast: %s", actionName(e.Action), reason)
}

func (e *ChainExecutionError) Unwrap() error { return e.Err }

// NetworkReadError reports a failed read of chain state. The next poll supersedes it.
type NetworkReadError struct {
	Op  string
	Err error
}

func (e *NetworkReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Op, e.Err)
}

func (e *NetworkReadError) Unwrap() error { return e.Err }

// classifySendError maps a wallet error raised before or during broadcast.
func classifySendError(action types.Action, err error) error {
	if wallet.IsRejection(err) {
		return &WalletRejectedError{Action: action, Err: err}
	}
	return &ChainExecutionError{Action: action, Phase: PhaseBroadcast, Reason: rootMessage(err), Err: err}
}

// rootMessage drops the wallet's sentinel prefix from joined errors.
func rootMessage(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs := joined.Unwrap()
		if len(errs) > 0 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}

func actionName(action types.Action) string {
	switch action {
	case types.ActionCreateFund:
		return "fund creation"
	case types.ActionApprove:
		return "approval"
	case types.ActionDeposit:
		return "deposit"
	case types.ActionRedeem:
		return "redemption"
	default:
		return string(action)
	}
}
