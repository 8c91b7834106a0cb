package fund

import (
	"context"
	"math/big"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/shopspring/decimal"
)

var (
	investor    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	comptroller = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	usdc        = types.Asset{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6}
)

// fakeSender broadcasts instantly and mines only when the test says so.
type fakeSender struct {
	mu       sync.Mutex
	addr     common.Address
	sent     []wallet.Call
	sendErr  error
	nonce    uint64
	pending  map[common.Hash]chan *gethtypes.Receipt
	reason   string
	lastHash common.Hash

	// When hold is non-nil, Send signals sending and waits on hold before broadcasting.
	hold    chan struct{}
	sending chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{addr: investor, pending: make(map[common.Hash]chan *gethtypes.Receipt)}
}

func (f *fakeSender) Address() common.Address { return f.addr }

func (f *fakeSender) Send(_ context.Context, call wallet.Call) (*gethtypes.Transaction, error) {
	f.mu.Lock()
	hold, sending := f.hold, f.sending
	f.mu.Unlock()
	if hold != nil {
		sending <- struct{}{}
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	to := call.To
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{Nonce: f.nonce, To: &to, Data: call.Data, Gas: 21000, GasPrice: big.NewInt(1)})
	f.nonce++
	f.sent = append(f.sent, call)
	f.pending[tx.Hash()] = make(chan *gethtypes.Receipt, 1)
	f.lastHash = tx.Hash()
	return tx, nil
}

func (f *fakeSender) WaitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	ch := f.pending[hash]
	f.mu.Unlock()
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSender) RevertReason(context.Context, wallet.Call, *gethtypes.Receipt) string {
	return f.reason
}

func (f *fakeSender) mine(hash common.Hash, status uint64) {
	f.mu.Lock()
	ch := f.pending[hash]
	f.mu.Unlock()
	ch <- &gethtypes.Receipt{Status: status, BlockNumber: big.NewInt(7), GasUsed: 90000, TxHash: hash}
}

func (f *fakeSender) calls() []wallet.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wallet.Call(nil), f.sent...)
}

// fakeState stands in for the chain state reader. chainAllowance is what the chain holds;
// published is what the last read saw.
type fakeState struct {
	mu             sync.Mutex
	snapshot       types.VaultSnapshot
	hasSnapshot    bool
	chainAllowance sdkmath.Int
	published      types.AllowanceRecord
	reads          int
	triggers       int

	// Reads after the first blockAfter ones wait for their context and fail with its error.
	blockAfter int
}

func newFakeState(nav string) *fakeState {
	return &fakeState{
		snapshot:       types.VaultSnapshot{NavPerShare: decimal.RequireFromString(nav), AsOf: time.Now()},
		hasSnapshot:    true,
		chainAllowance: sdkmath.ZeroInt(),
	}
}

func (s *fakeState) Snapshot() (types.VaultSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.hasSnapshot
}

func (s *fakeState) Allowance() types.AllowanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

func (s *fakeState) ReadAllowance(ctx context.Context) (types.AllowanceRecord, error) {
	s.mu.Lock()
	if s.blockAfter > 0 && s.reads >= s.blockAfter {
		s.mu.Unlock()
		<-ctx.Done()
		return types.AllowanceRecord{}, ctx.Err()
	}
	defer s.mu.Unlock()
	s.reads++
	s.published = types.AllowanceRecord{Owner: investor, Spender: comptroller, Amount: s.chainAllowance, AsOf: time.Now()}
	return s.published, nil
}

// Trigger behaves like a completed poll: the chain allowance becomes the published one.
func (s *fakeState) Trigger(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
	s.published = types.AllowanceRecord{Owner: investor, Spender: comptroller, Amount: s.chainAllowance, AsOf: time.Now()}
	return true
}

func (s *fakeState) setChainAllowance(units int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainAllowance = sdkmath.NewInt(units)
}

func (s *fakeState) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeState) triggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

// transitions records state changes in order.
type transitions struct {
	mu    sync.Mutex
	steps []string
}

func (t *transitions) record(from, to State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, string(from)+"->"+string(to))
}

func (t *transitions) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}
