package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/onchainfund/fundops/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidBackend     = errors.New("chain backend is invalid")
	ErrSignerInit         = errors.New("signer initialization failed")
	ErrKeyNotFound        = errors.New("signing key not found")
	ErrWalletRejected     = errors.New("signing request rejected by the wallet")
	ErrTxBuildFailed      = errors.New("transaction build failed")
	ErrTxSignFailed       = errors.New("transaction signing failed")
	ErrTxBroadcastFailed  = errors.New("transaction broadcast failed")
	ErrWouldRevert        = errors.New("transaction would revert")
	ErrReceiptUnavailable = errors.New("transaction receipt unavailable")
)

var walletLogger = logger.GetForComponent("wallet_client")

// Backend is the node surface the wallet needs. *ethclient.Client satisfies it.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Sender is what the fund flows use to submit transactions on behalf of the connected account.
type Sender interface {
	// Address is the account transactions are sent from.
	Address() common.Address
	// Send signs and broadcasts call, returning as soon as the node accepted it.
	Send(ctx context.Context, call Call) (*gethtypes.Transaction, error)
	// WaitMined blocks until the transaction has a receipt or ctx is done.
	WaitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
	// RevertReason replays a reverted call at its block and decodes the reason.
	RevertReason(ctx context.Context, call Call, receipt *gethtypes.Receipt) string
}

// Options tunes gas handling.
type Options struct {
	// DefaultGasLimit is the fallback gas limit if estimation fails for a non-revert reason.
	DefaultGasLimit uint64
	// GasAdjustment is the multiplier applied to estimated gas.
	GasAdjustment float64
	// ReceiptPollInterval is how often WaitMined asks for a receipt. Defaults to one second.
	ReceiptPollInterval time.Duration
}

// Client signs and broadcasts transactions with zero-tolerance validation.
type Client struct {
	backend Backend
	signer  Signer
	chainID *big.Int
	opts    Options

	// nonceMu serialises nonce assignment so concurrent flows never reuse a nonce.
	nonceMu sync.Mutex
}

var _ Sender = (*Client)(nil)

// NewClient creates a new signing client with comprehensive validation
func NewClient(backend Backend, signer Signer, chainID uint64, opts Options) (*Client, error) {
	if backend == nil {
		return nil, ErrInvalidBackend
	}
	if signer == nil {
		return nil, errors.Join(ErrSignerInit, errors.New("signer is nil"))
	}
	if err := validateOptions(chainID, opts); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	walletLogger.Info().
		Str("address", signer.Address().Hex()).
		Uint64("chainId", chainID).
		Uint64("defaultGasLimit", opts.DefaultGasLimit).
		Float64("gasAdjustment", opts.GasAdjustment).
		Msg("Signing client initialized")

	return &Client{
		backend: backend,
		signer:  signer,
		chainID: new(big.Int).SetUint64(chainID),
		opts:    opts,
	}, nil
}

func validateOptions(chainID uint64, opts Options) error {
	if chainID == 0 {
		return errors.New("chain ID cannot be zero")
	}
	if opts.DefaultGasLimit == 0 {
		return errors.New("default gas limit cannot be zero")
	}
	if math.IsNaN(opts.GasAdjustment) || math.IsInf(opts.GasAdjustment, 0) {
		return errors.New("gas adjustment is not finite")
	}
	if opts.GasAdjustment < 1 {
		return errors.New("gas adjustment must be at least 1")
	}
	return nil
}

// Address returns the sending account.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

// ChainID returns the chain the client signs for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// WaitMined blocks until the transaction is mined. There is no timeout beyond ctx.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	interval := c.opts.ReceiptPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			walletLogger.Info().
				Str("txHash", hash.Hex()).
				Uint64("status", receipt.Status).
				Uint64("gasUsed", receipt.GasUsed).
				Str("block", receipt.BlockNumber.String()).
				Msg("WaitMined: Transaction mined")
			return receipt, nil
		case errors.Is(err, ethereum.NotFound), err == nil:
			walletLogger.Debug().Str("txHash", hash.Hex()).Msg("WaitMined: Transaction not yet mined")
		default:
			walletLogger.Debug().Err(err).Str("txHash", hash.Hex()).Msg("WaitMined: Receipt retrieval failed")
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrReceiptUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the signer.
func (c *Client) Close() error {
	if closer, ok := c.signer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) String() string {
	return fmt.Sprintf("wallet(%s on chain %s)", c.signer.Address().Hex(), c.chainID)
}
