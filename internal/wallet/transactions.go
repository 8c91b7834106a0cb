package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/onchainfund/fundops/internal/logger"
)

var txLogger = logger.GetForComponent("transaction_builder")

// Call is a contract invocation to be signed and sent.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

func (c Call) msg(from common.Address) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: &c.To, Data: c.Data, Value: c.Value}
}

// Send estimates gas, prices and signs the call, then broadcasts it.
// Errors are classified: ErrWalletRejected when the signer declined, ErrWouldRevert when the
// node refused to estimate because execution reverts, ErrTxBroadcastFailed otherwise.
func (c *Client) Send(ctx context.Context, call Call) (*gethtypes.Transaction, error) {
	if len(call.Data) < 4 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("call data is missing a method selector"))
	}
	from := c.signer.Address()

	gasLimit, err := c.estimateGas(ctx, call.msg(from))
	if err != nil {
		return nil, err
	}

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("failed to get nonce: %w", err))
	}

	unsigned, err := c.buildTx(ctx, call, nonce, gasLimit)
	if err != nil {
		return nil, err
	}

	signed, err := c.signer.SignTx(ctx, unsigned, c.chainID)
	if err != nil {
		if IsRejection(err) {
			txLogger.Warn().Err(err).Str("to", call.To.Hex()).Msg("Send: Signing request rejected")
			return nil, errors.Join(ErrWalletRejected, err)
		}
		return nil, errors.Join(ErrTxSignFailed, err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		txLogger.Error().Err(err).Str("txHash", signed.Hash().Hex()).Msg("Send: Failed to broadcast transaction")
		return nil, errors.Join(ErrTxBroadcastFailed, err)
	}

	txLogger.Info().
		Str("txHash", signed.Hash().Hex()).
		Str("from", from.Hex()).
		Str("to", call.To.Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gasLimit).
		Msg("Send: Transaction broadcasted successfully")

	return signed, nil
}

// estimateGas applies the gas adjustment to the node's estimate. A revert during estimation is
// final; any other estimation failure falls back to the default gas limit.
func (c *Client) estimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	estimated, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		if reason, reverted := revertFromError(err); reverted {
			return 0, fmt.Errorf("%w: %s", ErrWouldRevert, reason)
		}
		txLogger.Warn().Err(err).Uint64("defaultGasLimit", c.opts.DefaultGasLimit).Msg("estimateGas: Gas estimation failed, using default gas limit")
		return c.opts.DefaultGasLimit, nil
	}
	if estimated == 0 {
		return c.opts.DefaultGasLimit, nil
	}
	adjusted := uint64(c.opts.GasAdjustment * float64(estimated))

	txLogger.Debug().
		Uint64("estimatedGas", estimated).
		Float64("gasAdjustment", c.opts.GasAdjustment).
		Uint64("adjustedGas", adjusted).
		Msg("estimateGas: Gas estimation completed successfully")
	return adjusted, nil
}

// buildTx prices the transaction as EIP-1559 when the chain reports a base fee, legacy otherwise.
func (c *Client) buildTx(ctx context.Context, call Call, nonce, gasLimit uint64) (*gethtypes.Transaction, error) {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("failed to get latest header: %w", err))
	}

	if head.BaseFee != nil {
		tip, err := c.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("failed to suggest tip: %w", err))
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &call.To,
			Value:     value,
			Data:      call.Data,
		}), nil
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("failed to suggest gas price: %w", err))
	}
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &call.To,
		Value:    value,
		Data:     call.Data,
	}), nil
}

// RevertReason replays call from this account at the receipt's block. It returns "" when the
// replay succeeds or no reason can be recovered.
func (c *Client) RevertReason(ctx context.Context, call Call, receipt *gethtypes.Receipt) string {
	var block *big.Int
	if receipt != nil {
		block = receipt.BlockNumber
	}
	_, err := c.backend.CallContract(ctx, call.msg(c.signer.Address()), block)
	if err == nil {
		return ""
	}
	reason, _ := revertFromError(err)
	return reason
}

// revertFromError extracts a revert reason from a node error. The bool reports whether the
// error was an execution revert at all.
func revertFromError(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, unpackErr := abi.UnpackRevert(common.FromHex(hexData)); unpackErr == nil {
				return reason, true
			}
		}
		return err.Error(), true
	}
	if isRevertMessage(err.Error()) {
		return err.Error(), true
	}
	return err.Error(), false
}
