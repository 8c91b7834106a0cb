package fund

import (
	"context"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OutcomeFunc observes every resolved transaction of a flow.
type OutcomeFunc func(types.Broadcast, types.Outcome)

// ExplorerFunc builds a block explorer link for a transaction hash.
type ExplorerFunc func(common.Hash) string

// Hooks are the optional observers shared by all flows.
type Hooks struct {
	OnTransition TransitionFunc
	// OnBroadcast is called right after a transaction was accepted by the node.
	OnBroadcast func(types.Broadcast)
	OnOutcome   OutcomeFunc
	Explorer    ExplorerFunc
}

// Gate tells the caller whether an action can be started right now.
type Gate struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
	State   State  `json:"state"`
}

// investorFlow holds what the subscription and redemption flows share: the guard, the sender and
// the background confirmation waiters.
type investorFlow struct {
	sender  wallet.Sender
	machine *machine
	hooks   Hooks
	log     zerolog.Logger

	// mu orders acquisitions with reads of action, the action that owns the flow.
	mu     sync.Mutex
	action types.Action

	// ctx bounds the confirmation waiters. Only Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newInvestorFlow(sender wallet.Sender, hooks Hooks, log zerolog.Logger) *investorFlow {
	ctx, cancel := context.WithCancel(context.Background())
	return &investorFlow{
		sender:  sender,
		machine: newMachine(hooks.OnTransition),
		hooks:   hooks,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the flow state and the error that last returned it to Idle.
func (f *investorFlow) State() (State, error) {
	return f.machine.current()
}

// Close stops waiting for confirmations and blocks until the waiters exit.
func (f *investorFlow) Close() {
	f.cancel()
	f.wg.Wait()
}

func (f *investorFlow) acquire(action types.Action) error {
	if f.ctx.Err() != nil {
		return ErrFlowClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.machine.acquire(StateSubmitting, StateIdle); err != nil {
		return err
	}
	f.action = action
	return nil
}

// inFlight returns the action owning the flow, or false when the flow is idle. It never blocks
// on I/O.
func (f *investorFlow) inFlight() (types.Action, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state, _ := f.machine.current(); state == StateIdle {
		return "", false
	}
	return f.action, true
}

// abort returns an acquired flow to Idle with err recorded.
func (f *investorFlow) abort(err error) error {
	f.machine.fail(StateIdle, err)
	return err
}

// submit sends call from an acquired flow. On success the flow waits for confirmation in the
// background, runs after, and only then returns to Idle.
func (f *investorFlow) submit(ctx context.Context, action types.Action, call wallet.Call, amount string, after func(context.Context, types.Outcome)) (*TxHandle, error) {
	tx, err := f.sender.Send(ctx, call)
	if err != nil {
		classified := classifySendError(action, err)
		f.log.Warn().Err(err).Str("action", string(action)).Msg("Transaction was not broadcast")
		return nil, f.abort(classified)
	}

	b := types.Broadcast{
		ID:          uuid.NewString(),
		Action:      action,
		Hash:        tx.Hash(),
		From:        f.sender.Address(),
		To:          call.To,
		Amount:      amount,
		SubmittedAt: time.Now().UTC(),
		Input:       call.Data,
	}
	if f.hooks.Explorer != nil {
		b.ExplorerURL = f.hooks.Explorer(b.Hash)
	}
	f.machine.move(StateAwaitingConfirmation)
	if f.hooks.OnBroadcast != nil {
		f.hooks.OnBroadcast(b)
	}

	f.log.Info().Str("action", string(action)).Str("txHash", b.Hash.Hex()).Str("amount", amount).Msg("Transaction broadcast")

	handle := newTxHandle(b)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		outcome := AwaitOutcome(f.ctx, f.sender, b)
		if after != nil {
			after(f.ctx, outcome)
		}

		switch outcome.Status {
		case types.OutcomeConfirmed:
			f.log.Info().Str("action", string(action)).Str("txHash", b.Hash.Hex()).Uint64("block", outcome.BlockNumber).Msg("Transaction confirmed")
			f.machine.move(StateIdle)
		case types.OutcomeReverted:
			f.log.Error().Str("action", string(action)).Str("txHash", b.Hash.Hex()).Msg(outcome.Message)
			f.machine.fail(StateIdle, outcome.Err)
		default:
			f.log.Warn().Str("action", string(action)).Str("txHash", b.Hash.Hex()).Msg(outcome.Message)
			f.machine.fail(StateIdle, outcome.Err)
		}

		if f.hooks.OnOutcome != nil {
			f.hooks.OnOutcome(b, outcome)
		}
		handle.resolve(outcome)
	}()

	return handle, nil
}

// parseAmount validates user input against the asset precision and scales it to base units.
func parseAmount(input string, decimals uint8) (decimal.Decimal, sdkmath.Int, error) {
	amount, err := utils.ParsePositiveAmount(input)
	if err != nil {
		return decimal.Zero, sdkmath.Int{}, &InvalidAmountError{Input: input, Err: err}
	}
	units, err := utils.ToBaseUnits(amount, decimals)
	if err != nil {
		return decimal.Zero, sdkmath.Int{}, &InvalidAmountError{Input: input, Err: err}
	}
	if !units.IsPositive() {
		return decimal.Zero, sdkmath.Int{}, &InvalidAmountError{Input: input, Err: utils.ErrAmountNotPositive}
	}
	return amount, units, nil
}
