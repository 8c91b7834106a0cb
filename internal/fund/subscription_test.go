package fund

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(t *testing.T, sender *fakeSender, state *fakeState, hooks Hooks) *SubscriptionFlow {
	t.Helper()
	flow, err := NewSubscriptionFlow(sender, state, SubscriptionConfig{
		Asset:              usdc,
		Comptroller:        comptroller,
		EntranceFeePercent: decimal.NewFromInt(1),
		SlippagePercent:    decimal.RequireFromString("0.5"),
		Hooks:              hooks,
	})
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	return flow
}

func waitOutcome(t *testing.T, h *TxHandle) types.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := h.Wait(ctx)
	require.NoError(t, err)
	return outcome
}

func TestSubscriptionQuote(t *testing.T) {
	flow := newTestSubscription(t, newFakeSender(), newFakeState("1.0"), Hooks{})

	q, err := flow.Quote(decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(10)), q.Fee.String())
	assert.True(t, q.NetAmount.Equal(decimal.NewFromInt(990)), q.NetAmount.String())
	assert.True(t, q.EstimatedShares.Equal(decimal.NewFromInt(990)), q.EstimatedShares.String())
}

func TestSubscriptionQuoteWithoutSnapshot(t *testing.T) {
	state := newFakeState("1.0")
	state.hasSnapshot = false
	flow := newTestSubscription(t, newFakeSender(), state, Hooks{})

	_, err := flow.Quote(decimal.NewFromInt(1))
	var readErr *NetworkReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestApproveExactAmountToComptroller(t *testing.T) {
	sender := newFakeSender()
	flow := newTestSubscription(t, sender, newFakeState("1.0"), Hooks{})

	handle, err := flow.Approve(context.Background(), "250.5")
	require.NoError(t, err)

	calls := sender.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, usdc.Address, calls[0].To)

	name, values, err := contracts.DecodeCall(calls[0].Data)
	require.NoError(t, err)
	assert.Equal(t, contracts.MethodApprove, name)
	assert.Equal(t, comptroller, values[0])
	assert.Equal(t, big.NewInt(250_500_000), values[1])

	sender.mine(handle.Broadcast.Hash, gethtypes.ReceiptStatusSuccessful)
	waitOutcome(t, handle)
}

func TestApproveReReadsAllowanceOnConfirmation(t *testing.T) {
	sender := newFakeSender()
	state := newFakeState("1.0")
	flow := newTestSubscription(t, sender, state, Hooks{})

	handle, err := flow.Approve(context.Background(), "100")
	require.NoError(t, err)
	state.setChainAllowance(100_000_000)
	assert.Equal(t, 0, state.readCount())

	sender.mine(handle.Broadcast.Hash, gethtypes.ReceiptStatusSuccessful)
	outcome := waitOutcome(t, handle)
	assert.Equal(t, types.OutcomeConfirmed, outcome.Status)
	assert.Equal(t, uint64(7), outcome.BlockNumber)

	assert.Equal(t, 1, state.readCount())
	assert.Equal(t, "100000000", state.Allowance().Amount.String())
	current, lastErr := flow.State()
	assert.Equal(t, StateIdle, current)
	assert.NoError(t, lastErr)

	gate := flow.Gate(context.Background(), "100")
	assert.True(t, gate.Deposit.Enabled)
	assert.False(t, gate.NeedsApproval)
}

func TestDepositFailsWhileApprovalPending(t *testing.T) {
	sender := newFakeSender()
	state := newFakeState("1.0")
	flow := newTestSubscription(t, sender, state, Hooks{})

	_, err := flow.Approve(context.Background(), "100")
	require.NoError(t, err)

	_, err = flow.Deposit(context.Background(), "100")
	var insufficient *InsufficientAllowanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "100000000", insufficient.Required.String())
	assert.True(t, insufficient.Available.IsZero())
	assert.Len(t, sender.calls(), 1)
}

func TestDepositUsesLiveQuoteForMinShares(t *testing.T) {
	sender := newFakeSender()
	state := newFakeState("1.0")
	state.setChainAllowance(1_000_000_000)
	flow := newTestSubscription(t, sender, state, Hooks{})

	handle, err := flow.Deposit(context.Background(), "1000")
	require.NoError(t, err)

	calls := sender.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, comptroller, calls[0].To)

	name, values, err := contracts.DecodeCall(calls[0].Data)
	require.NoError(t, err)
	assert.Equal(t, contracts.MethodBuyShares, name)
	assert.Equal(t, big.NewInt(1_000_000_000), values[0])
	minShares, ok := new(big.Int).SetString("985050000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, minShares, values[1])

	sender.mine(handle.Broadcast.Hash, gethtypes.ReceiptStatusSuccessful)
	waitOutcome(t, handle)
	assert.Equal(t, 2, state.readCount())
}

func TestSecondDepositRejectedWhileFirstInFlight(t *testing.T) {
	sender := newFakeSender()
	state := newFakeState("1.0")
	state.setChainAllowance(1_000_000_000)
	flow := newTestSubscription(t, sender, state, Hooks{})

	first, err := flow.Deposit(context.Background(), "100")
	require.NoError(t, err)

	second, err := flow.Deposit(context.Background(), "100")
	assert.ErrorIs(t, err, ErrFlowBusy)
	assert.Nil(t, second)
	assert.Len(t, sender.calls(), 1)

	gate := flow.Gate(context.Background(), "100")
	assert.False(t, gate.Deposit.Enabled)
	assert.False(t, gate.Approve.Enabled)
	assert.Equal(t, StateAwaitingConfirmation, gate.Deposit.State)

	sender.mine(first.Broadcast.Hash, gethtypes.ReceiptStatusSuccessful)
	waitOutcome(t, first)

	_, err = flow.Deposit(context.Background(), "100")
	assert.NoError(t, err)
}

func TestSecondDepositRejectedBeforeChainRead(t *testing.T) {
	sender := newFakeSender()
	state := newFakeState("1.0")
	state.setChainAllowance(1_000_000_000)
	state.blockAfter = 1
	flow := newTestSubscription(t, sender, state, Hooks{})

	_, err := flow.Deposit(context.Background(), "100")
	require.NoError(t, err)
	current, _ := flow.State()
	require.Equal(t, StateAwaitingConfirmation, current)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	_, err = flow.Deposit(ctx, "100")
	assert.ErrorIs(t, err, ErrFlowBusy)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, state.readCount())
	assert.Len(t, sender.calls(), 1)
}

func TestGateRefreshesOnNewAmount(t *testing.T) {
	state := newFakeState("1.0")
	flow := newTestSubscription(t, newFakeSender(), state, Hooks{})
	ctx := context.Background()

	gate := flow.Gate(ctx, "100")
	assert.True(t, gate.NeedsApproval)
	assert.Equal(t, 1, state.triggerCount())

	// Approved from another session; the same amount is served from published state.
	state.setChainAllowance(100_000_000)
	gate = flow.Gate(ctx, "100")
	assert.True(t, gate.NeedsApproval)
	assert.Equal(t, 1, state.triggerCount())

	gate = flow.Gate(ctx, "50")
	assert.False(t, gate.NeedsApproval)
	assert.True(t, gate.Deposit.Enabled)
	assert.Equal(t, 2, state.triggerCount())

	gate = flow.Gate(ctx, "abc")
	assert.False(t, gate.Approve.Enabled)
	assert.Equal(t, 2, state.triggerCount())
}

func TestWalletRejectionReturnsToIdle(t *testing.T) {
	sender := newFakeSender()
	sender.sendErr = errors.New("MetaMask Tx Signature: User denied transaction signature.")
	var trail transitions
	flow := newTestSubscription(t, sender, newFakeState("1.0"), Hooks{OnTransition: trail.record})

	_, err := flow.Approve(context.Background(), "100")
	var rejected *WalletRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, types.ActionApprove, rejected.Action)

	current, lastErr := flow.State()
	assert.Equal(t, StateIdle, current)
	assert.Equal(t, err, lastErr)
	assert.Equal(t, []string{"IDLE->SUBMITTING", "SUBMITTING->IDLE"}, trail.list())
}

func TestBroadcastFailureIsBroadcastPhase(t *testing.T) {
	sender := newFakeSender()
	sender.sendErr = errors.New("insufficient funds for gas * price + value")
	flow := newTestSubscription(t, sender, newFakeState("1.0"), Hooks{})

	_, err := flow.Approve(context.Background(), "1")
	var chainErr *ChainExecutionError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, PhaseBroadcast, chainErr.Phase)
	assert.Contains(t, err.Error(), "nothing was broadcast")
}

func TestRevertedDepositIsConfirmationPhase(t *testing.T) {
	sender := newFakeSender()
	sender.reason = "__buyShares: Shares received < _minSharesQuantity"
	state := newFakeState("1.0")
	state.setChainAllowance(1_000_000_000)

	var outcomes []types.Outcome
	flow := newTestSubscription(t, sender, state, Hooks{
		OnOutcome: func(_ types.Broadcast, o types.Outcome) { outcomes = append(outcomes, o) },
	})

	handle, err := flow.Deposit(context.Background(), "10")
	require.NoError(t, err)
	sender.mine(handle.Broadcast.Hash, gethtypes.ReceiptStatusFailed)
	outcome := waitOutcome(t, handle)

	assert.Equal(t, types.OutcomeReverted, outcome.Status)
	var chainErr *ChainExecutionError
	require.ErrorAs(t, outcome.Err, &chainErr)
	assert.Equal(t, PhaseConfirmation, chainErr.Phase)
	assert.Equal(t, handle.Broadcast.Hash, chainErr.Hash)
	assert.Contains(t, outcome.Message, "reverted on-chain")
	assert.Contains(t, outcome.Message, sender.reason)

	current, lastErr := flow.State()
	assert.Equal(t, StateIdle, current)
	assert.Equal(t, outcome.Err, lastErr)
	require.Len(t, outcomes, 1)
}

func TestInvalidAmounts(t *testing.T) {
	flow := newTestSubscription(t, newFakeSender(), newFakeState("1.0"), Hooks{})

	for _, input := range []string{"", "0", "-5", "abc", "1.0000001"} {
		_, err := flow.Approve(context.Background(), input)
		var invalid *InvalidAmountError
		assert.ErrorAs(t, err, &invalid, input)

		gate := flow.Gate(context.Background(), input)
		assert.False(t, gate.Deposit.Enabled, input)
		assert.False(t, gate.Approve.Enabled, input)
	}
}

func TestGateNeedsApproval(t *testing.T) {
	flow := newTestSubscription(t, newFakeSender(), newFakeState("1.0"), Hooks{})

	gate := flow.Gate(context.Background(), "5")
	assert.True(t, gate.Approve.Enabled)
	assert.False(t, gate.Deposit.Enabled)
	assert.True(t, gate.NeedsApproval)
	assert.Contains(t, gate.Deposit.Reason, "approve first")
}

func TestCloseAbandonsPendingConfirmation(t *testing.T) {
	sender := newFakeSender()
	flow, err := NewSubscriptionFlow(sender, newFakeState("1.0"), SubscriptionConfig{Asset: usdc, Comptroller: comptroller})
	require.NoError(t, err)

	handle, err := flow.Approve(context.Background(), "1")
	require.NoError(t, err)
	flow.Close()

	outcome, ok := handle.Outcome()
	require.True(t, ok)
	assert.Equal(t, types.OutcomeAbandoned, outcome.Status)

	_, err = flow.Approve(context.Background(), "1")
	assert.ErrorIs(t, err, ErrFlowClosed)
}
