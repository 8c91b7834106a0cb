package fund

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/quote"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/shopspring/decimal"
)

// RedemptionState is the chain state the redemption flow reads.
type RedemptionState interface {
	Snapshot() (types.VaultSnapshot, bool)
	// Trigger asks for an immediate refresh. It may be suppressed.
	Trigger(ctx context.Context) bool
}

// RedemptionConfig configures a RedemptionFlow.
type RedemptionConfig struct {
	Comptroller common.Address
	// ExitFeePercent is the fee the vault charges on redemptions, e.g. 0.5 for 0.5%.
	ExitFeePercent decimal.Decimal
	// ShareDecimals is the precision of the fund shares, 18 when zero.
	ShareDecimals uint8
	Hooks         Hooks
}

// RedemptionFlow redeems shares in kind for one investor. Shares are burned by the comptroller
// itself, so no approval step exists.
type RedemptionFlow struct {
	*investorFlow
	state   RedemptionState
	cfg     RedemptionConfig
	feeRate decimal.Decimal
}

func NewRedemptionFlow(sender wallet.Sender, state RedemptionState, cfg RedemptionConfig) (*RedemptionFlow, error) {
	if sender == nil || state == nil {
		return nil, errors.New("redemption flow requires a sender and a state source")
	}
	if cfg.Comptroller == (common.Address{}) {
		return nil, errors.New("redemption flow requires the comptroller address")
	}
	feeRate, err := utils.PercentToFraction(cfg.ExitFeePercent)
	if err != nil {
		return nil, fmt.Errorf("exit fee: %w", err)
	}
	if cfg.ShareDecimals == 0 {
		cfg.ShareDecimals = utils.FixedPointDecimals
	}

	return &RedemptionFlow{
		investorFlow: newInvestorFlow(sender, cfg.Hooks, logger.GetForComponent("redemption_flow")),
		state:        state,
		cfg:          cfg,
		feeRate:      feeRate,
	}, nil
}

// Quote previews redeeming shares against the latest published NAV.
func (r *RedemptionFlow) Quote(shares decimal.Decimal) (types.RedemptionQuote, error) {
	snapshot, ok := r.state.Snapshot()
	if !ok {
		return types.RedemptionQuote{}, &NetworkReadError{Op: "vault snapshot", Err: ErrNoSnapshot}
	}
	return quote.Redemption(shares, snapshot.NavPerShare, r.feeRate)
}

// Gate reports whether a redemption of shares can be started now.
func (r *RedemptionFlow) Gate(shares string) Gate {
	state, _ := r.State()
	gate := Gate{State: state}
	if _, _, err := parseAmount(shares, r.cfg.ShareDecimals); err != nil {
		gate.Reason = err.Error()
		return gate
	}
	if state != StateIdle {
		gate.Reason = ErrFlowBusy.Error()
		return gate
	}
	gate.Enabled = true
	return gate
}

// Redeem submits an in-kind redemption of shares to the sender, with no additional or skipped
// assets. The vault state is refreshed once the redemption is mined.
func (r *RedemptionFlow) Redeem(ctx context.Context, shares string) (*TxHandle, error) {
	amount, units, err := parseAmount(shares, r.cfg.ShareDecimals)
	if err != nil {
		return nil, err
	}
	if err := r.acquire(types.ActionRedeem); err != nil {
		return nil, err
	}

	intent := types.RedemptionIntent{SharesAmount: amount, BaseUnits: units, Recipient: r.sender.Address()}
	data, err := contracts.PackRedeemSharesInKind(intent.Recipient, intent.BaseUnits.BigInt())
	if err != nil {
		return nil, r.abort(err)
	}
	call := wallet.Call{To: r.cfg.Comptroller, Data: data}

	r.log.Debug().
		Str("shares", intent.SharesAmount.String()).
		Str("recipient", intent.Recipient.Hex()).
		Msg("Submitting redemption")

	return r.submit(ctx, types.ActionRedeem, call, shares, func(ctx context.Context, o types.Outcome) {
		if o.Status == types.OutcomeConfirmed {
			r.state.Trigger(ctx)
		}
	})
}
