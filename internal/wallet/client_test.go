package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var target = common.HexToAddress("0x369d962418A1B9D3997Df74c16227D39b43eCC99")

type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

type codedError struct {
	code int
}

func (e codedError) Error() string  { return "wallet error" }
func (e codedError) ErrorCode() int { return e.code }

// fakeBackend records what the client sends.
type fakeBackend struct {
	mu sync.Mutex

	baseFee     *big.Int
	nonce       uint64
	estimate    uint64
	estimateErr error
	sendErr     error
	callErr     error

	sent     []*gethtypes.Transaction
	receipts map[common.Hash]*gethtypes.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		baseFee:  big.NewInt(10_000_000_000),
		nonce:    7,
		estimate: 100_000,
		receipts: map[common.Hash]*gethtypes.Receipt{},
	}
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(20_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{Number: big.NewInt(100), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.receipts[tx.Hash()] = &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(101), GasUsed: 90_000, TxHash: tx.Hash()}
	return nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, f.callErr
}

type rejectingSigner struct {
	err error
}

func (s rejectingSigner) Address() common.Address { return common.HexToAddress(testAddress) }

func (s rejectingSigner) SignTx(context.Context, *gethtypes.Transaction, *big.Int) (*gethtypes.Transaction, error) {
	return nil, s.err
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	signer, err := NewKeySigner("0x" + testKey)
	require.NoError(t, err)
	client, err := NewClient(backend, signer, 1, Options{DefaultGasLimit: 500_000, GasAdjustment: 1.2})
	require.NoError(t, err)
	return client
}

func testCall() Call {
	return Call{To: target, Data: []byte{0xde, 0xad, 0xbe, 0xef, 0x01}}
}

func TestNewKeySigner(t *testing.T) {
	signer, err := NewKeySigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), signer.Address())

	_, err = NewKeySigner("")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = NewKeySigner("zz")
	assert.ErrorIs(t, err, ErrSignerInit)
}

func TestNewClientValidation(t *testing.T) {
	signer, err := NewKeySigner(testKey)
	require.NoError(t, err)

	_, err = NewClient(nil, signer, 1, Options{DefaultGasLimit: 1, GasAdjustment: 1})
	assert.ErrorIs(t, err, ErrInvalidBackend)

	_, err = NewClient(newFakeBackend(), signer, 0, Options{DefaultGasLimit: 1, GasAdjustment: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(newFakeBackend(), signer, 1, Options{DefaultGasLimit: 1, GasAdjustment: 0.9})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSendDynamicFeeTransaction(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	tx, err := client.Send(context.Background(), testCall())
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	assert.Equal(t, uint8(gethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, target, *tx.To())
	assert.Equal(t, "21000000000", tx.GasFeeCap().String())

	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), from)

	receipt, err := client.WaitMined(context.Background(), tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, gethtypes.ReceiptStatusSuccessful, receipt.Status)
}

func TestWaitMinedHonoursContext(t *testing.T) {
	backend := newFakeBackend()
	signer, err := NewKeySigner(testKey)
	require.NoError(t, err)
	client, err := NewClient(backend, signer, 1, Options{DefaultGasLimit: 1, GasAdjustment: 1, ReceiptPollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.WaitMined(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ErrReceiptUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendLegacyWithoutBaseFee(t *testing.T) {
	backend := newFakeBackend()
	backend.baseFee = nil
	client := newTestClient(t, backend)

	tx, err := client.Send(context.Background(), testCall())
	require.NoError(t, err)
	assert.Equal(t, uint8(gethtypes.LegacyTxType), tx.Type())
	assert.Equal(t, "20000000000", tx.GasPrice().String())
}

func TestSendEstimationFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = errors.New("connection reset")
	client := newTestClient(t, backend)

	tx, err := client.Send(context.Background(), testCall())
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), tx.Gas())
}

func TestSendEstimationRevertIsFinal(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = revertError{data: revertData(t, "below min shares")}
	client := newTestClient(t, backend)

	_, err := client.Send(context.Background(), testCall())
	assert.ErrorIs(t, err, ErrWouldRevert)
	assert.Contains(t, err.Error(), "below min shares")
	assert.Empty(t, backend.sent)
}

func TestSendRejectedBySigner(t *testing.T) {
	backend := newFakeBackend()
	client, err := NewClient(backend, rejectingSigner{err: errors.New("Request denied")}, 1, Options{DefaultGasLimit: 1, GasAdjustment: 1})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), testCall())
	assert.ErrorIs(t, err, ErrWalletRejected)
	assert.Empty(t, backend.sent)

	client, err = NewClient(backend, rejectingSigner{err: errors.New("hsm offline")}, 1, Options{DefaultGasLimit: 1, GasAdjustment: 1})
	require.NoError(t, err)
	_, err = client.Send(context.Background(), testCall())
	assert.ErrorIs(t, err, ErrTxSignFailed)
	assert.False(t, errors.Is(err, ErrWalletRejected))
}

func TestSendBroadcastFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("nonce too low")
	client := newTestClient(t, backend)

	_, err := client.Send(context.Background(), testCall())
	assert.ErrorIs(t, err, ErrTxBroadcastFailed)
}

func TestSendRejectsMissingSelector(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	_, err := client.Send(context.Background(), Call{To: target})
	assert.ErrorIs(t, err, ErrTxBuildFailed)
}

func TestRevertReason(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)
	receipt := &gethtypes.Receipt{BlockNumber: big.NewInt(5)}

	assert.Equal(t, "", client.RevertReason(context.Background(), testCall(), receipt))

	backend.callErr = revertError{data: revertData(t, "__preBuySharesHook: Policy violation")}
	assert.Equal(t, "__preBuySharesHook: Policy violation", client.RevertReason(context.Background(), testCall(), receipt))

	backend.callErr = errors.New("execution reverted")
	assert.Equal(t, "execution reverted", client.RevertReason(context.Background(), testCall(), receipt))
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(codedError{code: 4001}))
	assert.True(t, IsRejection(errors.New("Request denied")))
	assert.True(t, IsRejection(errors.New("MetaMask Tx Signature: User denied transaction signature.")))
	assert.True(t, IsRejection(ErrWalletRejected))
	assert.False(t, IsRejection(codedError{code: -32000}))
	assert.False(t, IsRejection(nil))
}

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringT, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringT}}.Pack(reason)
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return "0x" + common.Bytes2Hex(append(selector, packed...))
}
