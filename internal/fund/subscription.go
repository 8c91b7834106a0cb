package fund

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/quote"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/shopspring/decimal"
)

// SubscriptionState is the chain state the subscription flow reads.
type SubscriptionState interface {
	Snapshot() (types.VaultSnapshot, bool)
	// Allowance returns the last published allowance, used for gating only.
	Allowance() types.AllowanceRecord
	// ReadAllowance reads the allowance from the chain now and publishes it.
	ReadAllowance(ctx context.Context) (types.AllowanceRecord, error)
	// Trigger polls now unless a poll is already running.
	Trigger(ctx context.Context) bool
}

// SubscriptionConfig configures a SubscriptionFlow.
type SubscriptionConfig struct {
	// Asset is the deposit (denomination) asset.
	Asset types.Asset
	// Comptroller is the spender of the approval and the target of the deposit.
	Comptroller common.Address
	// EntranceFeePercent is the fee the vault charges on deposits, e.g. 1 for 1%.
	EntranceFeePercent decimal.Decimal
	// SlippagePercent is subtracted from the share estimate to derive minSharesOut.
	SlippagePercent decimal.Decimal
	// ShareDecimals is the precision of the fund shares, 18 when zero.
	ShareDecimals uint8
	Hooks         Hooks
}

// SubscriptionFlow runs approve-then-deposit for one investor.
type SubscriptionFlow struct {
	*investorFlow
	state   SubscriptionState
	cfg     SubscriptionConfig
	feeRate decimal.Decimal

	gatedMu sync.Mutex
	gated   string
}

// SubscriptionGate holds the gating of both subscription actions.
type SubscriptionGate struct {
	Approve       Gate `json:"approve"`
	Deposit       Gate `json:"deposit"`
	NeedsApproval bool `json:"needs_approval"`
}

func NewSubscriptionFlow(sender wallet.Sender, state SubscriptionState, cfg SubscriptionConfig) (*SubscriptionFlow, error) {
	if sender == nil || state == nil {
		return nil, errors.New("subscription flow requires a sender and a state source")
	}
	if cfg.Comptroller == (common.Address{}) || cfg.Asset.Address == (common.Address{}) {
		return nil, errors.New("subscription flow requires the comptroller and deposit asset addresses")
	}
	feeRate, err := utils.PercentToFraction(cfg.EntranceFeePercent)
	if err != nil {
		return nil, fmt.Errorf("entrance fee: %w", err)
	}
	if _, err := utils.PercentToFraction(cfg.SlippagePercent); err != nil {
		return nil, fmt.Errorf("slippage: %w", err)
	}
	if cfg.ShareDecimals == 0 {
		cfg.ShareDecimals = utils.FixedPointDecimals
	}

	return &SubscriptionFlow{
		investorFlow: newInvestorFlow(sender, cfg.Hooks, logger.GetForComponent("subscription_flow")),
		state:        state,
		cfg:          cfg,
		feeRate:      feeRate,
	}, nil
}

// Quote previews a deposit of amount against the latest published NAV.
func (s *SubscriptionFlow) Quote(amount decimal.Decimal) (types.SubscriptionQuote, error) {
	snapshot, ok := s.state.Snapshot()
	if !ok {
		return types.SubscriptionQuote{}, &NetworkReadError{Op: "vault snapshot", Err: ErrNoSnapshot}
	}
	return quote.Subscription(amount, snapshot.NavPerShare, s.feeRate)
}

// Gate reports which actions are available for amount from published state. A new amount
// refreshes the chain state first; repeated gating of the same amount does not.
func (s *SubscriptionFlow) Gate(ctx context.Context, amount string) SubscriptionGate {
	_, units, err := parseAmount(amount, s.cfg.Asset.Decimals)
	if err == nil && s.amountChanged(units) {
		s.state.Trigger(ctx)
	}

	state, _ := s.State()
	gate := SubscriptionGate{
		Approve: Gate{State: state},
		Deposit: Gate{State: state},
	}

	switch {
	case err != nil:
		gate.Approve.Reason = err.Error()
		gate.Deposit.Reason = err.Error()
		return gate
	case state != StateIdle:
		gate.Approve.Reason = ErrFlowBusy.Error()
		gate.Deposit.Reason = ErrFlowBusy.Error()
		return gate
	}

	gate.Approve.Enabled = true
	allowance := s.state.Allowance()
	if !allowance.Covers(units) {
		gate.NeedsApproval = true
		gate.Deposit.Reason = (&InsufficientAllowanceError{Required: units, Available: allowance.Amount, Asset: s.cfg.Asset.Symbol}).Error()
		return gate
	}
	gate.Deposit.Enabled = true
	return gate
}

// amountChanged records units as the last gated amount and reports whether it differs.
func (s *SubscriptionFlow) amountChanged(units sdkmath.Int) bool {
	s.gatedMu.Lock()
	defer s.gatedMu.Unlock()
	key := units.String()
	if key == s.gated {
		return false
	}
	s.gated = key
	return true
}

// Approve grants the comptroller an allowance of exactly amount. When the approval is mined the
// allowance is read back from the chain.
func (s *SubscriptionFlow) Approve(ctx context.Context, amount string) (*TxHandle, error) {
	_, units, err := parseAmount(amount, s.cfg.Asset.Decimals)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(types.ActionApprove); err != nil {
		return nil, err
	}

	data, err := contracts.PackApprove(s.cfg.Comptroller, units.BigInt())
	if err != nil {
		return nil, s.abort(err)
	}
	call := wallet.Call{To: s.cfg.Asset.Address, Data: data}

	return s.submit(ctx, types.ActionApprove, call, amount, func(ctx context.Context, _ types.Outcome) {
		s.refreshAllowance(ctx)
	})
}

// Deposit buys shares for amount. The allowance is read live and must already cover amount.
// minSharesOut is the live share estimate reduced by the slippage tolerance. A deposit while
// another deposit is in flight fails with ErrFlowBusy before anything is read.
func (s *SubscriptionFlow) Deposit(ctx context.Context, amount string) (*TxHandle, error) {
	value, units, err := parseAmount(amount, s.cfg.Asset.Decimals)
	if err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, ErrFlowClosed
	}
	// A pending approval falls through so the caller learns the allowance is not there yet.
	if action, busy := s.inFlight(); busy && action != types.ActionApprove {
		return nil, ErrFlowBusy
	}

	allowance, err := s.state.ReadAllowance(ctx)
	if err != nil {
		return nil, &NetworkReadError{Op: "allowance", Err: err}
	}
	if allowance.Owner != s.sender.Address() || allowance.Spender != s.cfg.Comptroller {
		return nil, ErrAccountMismatch
	}
	if !allowance.Covers(units) {
		insufficient := &InsufficientAllowanceError{Required: units, Available: allowance.Amount, Asset: s.cfg.Asset.Symbol}
		s.log.Warn().Str("required", units.String()).Msg(insufficient.Error())
		return nil, insufficient
	}

	if err := s.acquire(types.ActionDeposit); err != nil {
		return nil, err
	}

	intent, err := s.intent(value, units)
	if err != nil {
		return nil, s.abort(err)
	}
	data, err := contracts.PackBuyShares(intent.BaseUnits.BigInt(), intent.MinSharesOut.BigInt())
	if err != nil {
		return nil, s.abort(err)
	}
	call := wallet.Call{To: s.cfg.Comptroller, Data: data}

	s.log.Debug().
		Str("amount", intent.Amount.String()).
		Str("baseUnits", intent.BaseUnits.String()).
		Str("minSharesOut", intent.MinSharesOut.String()).
		Msg("Submitting deposit")

	return s.submit(ctx, types.ActionDeposit, call, amount, func(ctx context.Context, _ types.Outcome) {
		s.refreshAllowance(ctx)
	})
}

// intent prices the deposit against the latest snapshot.
func (s *SubscriptionFlow) intent(amount decimal.Decimal, units sdkmath.Int) (types.SubscriptionIntent, error) {
	q, err := s.Quote(amount)
	if err != nil {
		return types.SubscriptionIntent{}, err
	}
	minOut, err := quote.MinimumOut(q.EstimatedShares, s.cfg.SlippagePercent, s.cfg.ShareDecimals)
	if err != nil {
		return types.SubscriptionIntent{}, &InvalidAmountError{Input: amount.String(), Err: err}
	}
	return types.SubscriptionIntent{
		Amount:       amount,
		BaseUnits:    units,
		Asset:        s.cfg.Asset,
		MinSharesOut: minOut,
	}, nil
}

func (s *SubscriptionFlow) refreshAllowance(ctx context.Context) {
	record, err := s.state.ReadAllowance(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to re-read allowance after confirmation")
		return
	}
	s.log.Info().Str("allowance", record.Amount.String()).Msg("Allowance re-read from chain")
}
