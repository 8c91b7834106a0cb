package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/quote"
	"github.com/onchainfund/fundops/internal/registry"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testHash  = common.HexToHash("0x1234")
	testOwner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

type fakeState struct {
	snapshot types.VaultSnapshot
	ok       bool
	err      error
}

func (f fakeState) Snapshot() (types.VaultSnapshot, bool) { return f.snapshot, f.ok }
func (f fakeState) LastError() error                      { return f.err }

type fakeSubscriber struct {
	err error
}

func (f *fakeSubscriber) Quote(amount decimal.Decimal) (types.SubscriptionQuote, error) {
	return quote.Subscription(amount, decimal.NewFromInt(1), decimal.RequireFromString("0.01"))
}

func (f *fakeSubscriber) Gate(context.Context, string) fund.SubscriptionGate {
	return fund.SubscriptionGate{Approve: fund.Gate{Enabled: true, State: fund.StateIdle}, NeedsApproval: true}
}

func (f *fakeSubscriber) Approve(_ context.Context, amount string) (*fund.TxHandle, error) {
	return f.handle(types.ActionApprove, amount)
}

func (f *fakeSubscriber) Deposit(_ context.Context, amount string) (*fund.TxHandle, error) {
	return f.handle(types.ActionDeposit, amount)
}

func (f *fakeSubscriber) handle(action types.Action, amount string) (*fund.TxHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fund.TxHandle{Broadcast: types.Broadcast{ID: "tx-1", Action: action, Hash: testHash, Amount: amount}}, nil
}

type fakeRedeemer struct {
	err error
}

func (f *fakeRedeemer) Quote(shares decimal.Decimal) (types.RedemptionQuote, error) {
	return quote.Redemption(shares, decimal.RequireFromString("1.05"), decimal.RequireFromString("0.005"))
}

func (f *fakeRedeemer) Gate(string) fund.Gate { return fund.Gate{Enabled: true, State: fund.StateIdle} }

func (f *fakeRedeemer) Redeem(_ context.Context, shares string) (*fund.TxHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fund.TxHandle{Broadcast: types.Broadcast{ID: "tx-2", Action: types.ActionRedeem, Hash: testHash, Amount: shares}}, nil
}

type fakeCreator struct {
	err error
}

func (f *fakeCreator) CreateFund(_ context.Context, draft types.FundDraft, sender wallet.Sender) (types.Broadcast, error) {
	if f.err != nil {
		return types.Broadcast{}, f.err
	}
	return types.Broadcast{ID: "tx-3", Action: types.ActionCreateFund, Hash: testHash, From: sender.Address()}, nil
}

func (f *fakeCreator) Prepare(types.FundDraft, common.Address) (wallet.Call, types.EncodedConfig, error) {
	if f.err != nil {
		return wallet.Call{}, types.EncodedConfig{}, f.err
	}
	return wallet.Call{To: common.HexToAddress("0xd1"), Data: []byte{0xab, 0xcd}},
		types.EncodedConfig{FeeManagerConfig: []byte{0x01}, PolicyManagerConfig: []byte{}}, nil
}

func (f *fakeCreator) State() (fund.State, error) { return fund.StateFailed, f.err }

type fakeSender struct{ wallet.Sender }

func (fakeSender) Address() common.Address { return testOwner }

type fakeJournal struct {
	records   []state.TransactionRecord
	snapshots []state.SnapshotRecord
}

func (f *fakeJournal) GetRecentTransactions(context.Context, int) ([]state.TransactionRecord, error) {
	return f.records, nil
}

func (f *fakeJournal) GetTransaction(_ context.Context, id string) (state.TransactionRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return state.TransactionRecord{}, fmt.Errorf("%w: transaction %s", state.ErrNotFound, id)
}

func (f *fakeJournal) GetRecentSnapshots(context.Context, common.Address, int) ([]state.SnapshotRecord, error) {
	return f.snapshots, nil
}

func (f *fakeJournal) GetActivitySummary(context.Context, common.Address, time.Time) (*state.ActivitySummary, error) {
	return &state.ActivitySummary{TotalTransactions: len(f.records)}, nil
}

func (f *fakeJournal) Ping(context.Context) error { return nil }

func serve(t *testing.T, deps Deps, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	ws := NewWebServer("0", deps)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestSubscriptionQuote(t *testing.T) {
	rec, body := serve(t, Deps{Subscription: &fakeSubscriber{}}, http.MethodGet, "/api/quote/subscription?amount=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", body["fee"])
	assert.Equal(t, "990", body["net_amount"])
	assert.Equal(t, "990", body["estimated_shares"])
}

func TestRedemptionQuote(t *testing.T) {
	rec, body := serve(t, Deps{Redemption: &fakeRedeemer{}}, http.MethodGet, "/api/quote/redemption?shares=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "105", body["gross_value"])
	assert.Equal(t, "104.475", body["net_value"])
}

func TestQuoteRejectsBadAmount(t *testing.T) {
	rec, body := serve(t, Deps{Subscription: &fakeSubscriber{}}, http.MethodGet, "/api/quote/subscription?amount=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", body["error"])
}

func TestApproveAccepted(t *testing.T) {
	rec, body := serve(t, Deps{Subscription: &fakeSubscriber{}}, http.MethodPost, "/api/subscription/approve", `{"amount":"100"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, testHash.Hex(), body["tx_hash"])
	assert.Equal(t, "APPROVE", body["action"])
}

func TestMutationErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"busy", fund.ErrFlowBusy, http.StatusConflict, "flow_busy"},
		{"allowance", &fund.InsufficientAllowanceError{Required: sdkmath.NewInt(10), Available: sdkmath.ZeroInt(), Asset: "USDC"}, http.StatusConflict, "insufficient_allowance"},
		{"rejected", &fund.WalletRejectedError{Action: types.ActionDeposit, Err: errors.New("denied")}, http.StatusUnprocessableEntity, "wallet_rejected"},
		{"broadcast", &fund.ChainExecutionError{Action: types.ActionDeposit, Phase: fund.PhaseBroadcast}, http.StatusBadGateway, "chain_execution_error"},
		{"read", &fund.NetworkReadError{Op: "allowance", Err: errors.New("timeout")}, http.StatusBadGateway, "network_read_error"},
		{"amount", &fund.InvalidAmountError{Input: "x", Err: errors.New("bad")}, http.StatusBadRequest, "invalid_amount"},
		{"closed", fund.ErrFlowClosed, http.StatusServiceUnavailable, "unavailable"},
		{"no signer", fund.ErrNoSender, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, Deps{Subscription: &fakeSubscriber{err: tt.err}}, http.MethodPost, "/api/subscription/deposit", `{"amount":"10"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, body["error"])
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestMutationRequiresJSONBody(t *testing.T) {
	rec, body := serve(t, Deps{Redemption: &fakeRedeemer{}}, http.MethodPost, "/api/redemption/redeem", "shares=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestRedeemAccepted(t *testing.T) {
	rec, body := serve(t, Deps{Redemption: &fakeRedeemer{}}, http.MethodPost, "/api/redemption/redeem", `{"amount":"5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "REDEEM", body["action"])
	assert.Equal(t, "5", body["amount"])
}

func TestCreateFundTracksBroadcast(t *testing.T) {
	var tracked []types.Broadcast
	deps := Deps{
		Lifecycle:     &fakeCreator{},
		Sender:        fakeSender{},
		TrackCreation: func(b types.Broadcast) { tracked = append(tracked, b) },
	}
	rec, body := serve(t, deps, http.MethodPost, "/api/funds", `{"name":"Alpha","symbol":"ALP","denomination_asset":"USDC"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, testOwner.Hex(), body["from"])
	require.Len(t, tracked, 1)
	assert.Equal(t, testHash, tracked[0].Hash)
}

func TestCreateFundUnsupportedAsset(t *testing.T) {
	err := &fund.UnsupportedAssetError{Symbol: "DOGE", Network: "mainnet", Err: registry.ErrUnsupportedAsset}
	rec, body := serve(t, Deps{Lifecycle: &fakeCreator{err: err}, Sender: fakeSender{}}, http.MethodPost, "/api/funds", `{"denomination_asset":"DOGE"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unsupported_asset", body["error"])
}

func TestCreateFundConfigurationError(t *testing.T) {
	err := &fund.ConfigurationError{Field: "name", Err: fund.ErrNameRequired}
	rec, body := serve(t, Deps{Lifecycle: &fakeCreator{err: err}, Sender: fakeSender{}}, http.MethodPost, "/api/funds", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "configuration_error", body["error"])
}

func TestEncodeFundReturnsHex(t *testing.T) {
	rec, body := serve(t, Deps{Lifecycle: &fakeCreator{}}, http.MethodPost, "/api/funds/encode", `{"name":"Alpha"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabcd", body["data"])
	assert.Equal(t, "0x01", body["fee_manager_config"])
	assert.Equal(t, "0x", body["policy_manager_config"])
}

func TestTransactionsWithoutJournal(t *testing.T) {
	rec, body := serve(t, Deps{}, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["error"])
}

func TestTransactionLookup(t *testing.T) {
	journal := &fakeJournal{records: []state.TransactionRecord{{Broadcast: types.Broadcast{ID: "tx-9", Action: types.ActionDeposit}, Status: "CONFIRMED"}}}

	rec, body := serve(t, Deps{Journal: journal}, http.MethodGet, "/api/transactions?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(20), body["limit"])

	rec, body = serve(t, Deps{Journal: journal}, http.MethodGet, "/api/transactions/tx-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CONFIRMED", body["status"])

	rec, body = serve(t, Deps{Journal: journal}, http.MethodGet, "/api/transactions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestVaultPerformance(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	journal := &fakeJournal{snapshots: []state.SnapshotRecord{
		{ID: 2, VaultSnapshot: types.VaultSnapshot{NavPerShare: decimal.RequireFromString("1.1"), AsOf: start.Add(time.Hour)}},
		{ID: 1, VaultSnapshot: types.VaultSnapshot{NavPerShare: decimal.NewFromInt(1), AsOf: start}},
	}}

	rec, body := serve(t, Deps{Journal: journal}, http.MethodGet, "/api/vault/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["samples"])
	assert.Equal(t, "10", body["return_percent"])

	rec, body = serve(t, Deps{Journal: &fakeJournal{}}, http.MethodGet, "/api/vault/performance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "insufficient_history", body["error"])
}

func TestSnapshotNotYetPublished(t *testing.T) {
	rec, body := serve(t, Deps{State: fakeState{}}, http.MethodGet, "/api/vault/snapshot", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "network_read_error", body["error"])
}

func TestHealth(t *testing.T) {
	healthy := fakeState{snapshot: types.VaultSnapshot{NavPerShare: decimal.NewFromInt(1), AsOf: time.Now()}, ok: true}
	rec, body := serve(t, Deps{State: healthy, Journal: &fakeJournal{}}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])

	degraded := fakeState{err: errors.New("rpc down")}
	rec, body = serve(t, Deps{State: degraded}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEGRADED", body["status"])
}

func TestLifecycleState(t *testing.T) {
	rec, body := serve(t, Deps{Lifecycle: &fakeCreator{err: errors.New("boom")}}, http.MethodGet, "/api/funds/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAILED", body["state"])
	assert.Equal(t, "boom", body["reason"])
}
