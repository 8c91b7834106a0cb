package fund

import (
	"context"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
)

// TxHandle is returned right after broadcast. The outcome resolves in the background.
type TxHandle struct {
	Broadcast types.Broadcast

	done    chan struct{}
	outcome types.Outcome
}

func newTxHandle(b types.Broadcast) *TxHandle {
	return &TxHandle{Broadcast: b, done: make(chan struct{})}
}

// Done is closed once the outcome is known.
func (h *TxHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the outcome is known or ctx is done.
func (h *TxHandle) Wait(ctx context.Context) (types.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return types.Outcome{}, ctx.Err()
	}
}

// Outcome returns the outcome if it is already known.
func (h *TxHandle) Outcome() (types.Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return types.Outcome{}, false
	}
}

func (h *TxHandle) resolve(o types.Outcome) {
	h.outcome = o
	close(h.done)
}

// AwaitOutcome waits for b to be mined and reports how it ended. A revert carries a
// confirmation-phase ChainExecutionError with the replayed revert reason.
func AwaitOutcome(ctx context.Context, sender wallet.Sender, b types.Broadcast) types.Outcome {
	receipt, err := sender.WaitMined(ctx, b.Hash)
	if err != nil {
		return types.Outcome{
			Status:     types.OutcomeAbandoned,
			Message:    "stopped waiting for confirmation: " + err.Error(),
			ResolvedAt: time.Now(),
			Err:        err,
		}
	}

	outcome := types.Outcome{
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		ResolvedAt:  time.Now(),
	}
	if receipt.Status == gethtypes.ReceiptStatusSuccessful {
		outcome.Status = types.OutcomeConfirmed
		return outcome
	}

	reason := sender.RevertReason(ctx, wallet.Call{To: b.To, Data: b.Input}, receipt)
	chainErr := &ChainExecutionError{Action: b.Action, Phase: PhaseConfirmation, Hash: b.Hash, Reason: reason}
	outcome.Status = types.OutcomeReverted
	outcome.Message = chainErr.Error()
	outcome.Err = chainErr
	return outcome
}
