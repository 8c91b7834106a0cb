package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/onchainfund/fundops/internal/analyzer"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/metrics"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
)

// amountRequest is the body of every investor mutation.
type amountRequest struct {
	Amount string `json:"amount"`
}

type moduleResponse struct {
	Module   common.Address `json:"module"`
	Settings hexutil.Bytes  `json:"settings"`
}

type encodeResponse struct {
	To                  common.Address   `json:"to"`
	Data                hexutil.Bytes    `json:"data"`
	FeeManagerConfig    hexutil.Bytes    `json:"fee_manager_config"`
	PolicyManagerConfig hexutil.Bytes    `json:"policy_manager_config"`
	Fees                []moduleResponse `json:"fees"`
	Policies            []moduleResponse `json:"policies"`
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "OK"
	checks := map[string]interface{}{}

	if ws.deps.State != nil {
		snapshot, ok := ws.deps.State.Snapshot()
		checks["snapshot_published"] = ok
		if ok {
			checks["snapshot_age_seconds"] = int64(time.Since(snapshot.AsOf).Seconds())
		}
		if err := ws.deps.State.LastError(); err != nil {
			checks["last_poll_error"] = err.Error()
			status = "DEGRADED"
		}
		if !ok {
			status = "DEGRADED"
		}
	}
	if ws.deps.Journal != nil {
		if err := ws.deps.Journal.Ping(r.Context()); err != nil {
			checks["database"] = err.Error()
			status = "DEGRADED"
		} else {
			checks["database"] = "ok"
		}
	}

	statusCode := http.StatusOK
	if status != "OK" {
		statusCode = http.StatusServiceUnavailable
	}
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"goroutines": runtime.NumGoroutine(),
		"checks":     checks,
	})
}

func (ws *WebServer) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	if ws.deps.State == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	snapshot, ok := ws.deps.State.Snapshot()
	if !ok {
		ws.writeError(w, &fund.NetworkReadError{Op: "vault snapshot", Err: fund.ErrNoSnapshot})
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

func (ws *WebServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Journal == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	hours := queryInt(r, "hours", 24, 24*365)
	summary, err := ws.deps.Journal.GetActivitySummary(r.Context(), ws.deps.Vault, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handlePerformance measures NAV over the newest stored snapshots.
func (ws *WebServer) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Journal == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	limit := queryInt(r, "limit", 100, 100)
	records, err := ws.deps.Journal.GetRecentSnapshots(r.Context(), ws.deps.Vault, limit)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	snapshots := make([]types.VaultSnapshot, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, rec.VaultSnapshot)
	}
	perf, err := analyzer.MeasureNav(snapshots)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, perf)
}

func (ws *WebServer) handleSubscriptionQuote(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Subscription == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	amount, err := utils.ParsePositiveAmount(r.URL.Query().Get("amount"))
	if err != nil {
		ws.writeError(w, err)
		return
	}
	quote, err := ws.deps.Subscription.Quote(amount)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

func (ws *WebServer) handleRedemptionQuote(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Redemption == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	shares, err := utils.ParsePositiveAmount(r.URL.Query().Get("shares"))
	if err != nil {
		ws.writeError(w, err)
		return
	}
	quote, err := ws.deps.Redemption.Quote(shares)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

func (ws *WebServer) handleSubscriptionGate(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Subscription == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.deps.Subscription.Gate(r.Context(), r.URL.Query().Get("amount")))
}

func (ws *WebServer) handleRedemptionGate(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Redemption == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.deps.Redemption.Gate(r.URL.Query().Get("shares")))
}

func (ws *WebServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Subscription == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	ws.mutate(w, r, types.ActionApprove, ws.deps.Subscription.Approve)
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Subscription == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	ws.mutate(w, r, types.ActionDeposit, ws.deps.Subscription.Deposit)
}

func (ws *WebServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Redemption == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	ws.mutate(w, r, types.ActionRedeem, ws.deps.Redemption.Redeem)
}

// mutate runs one investor action. The response is sent at broadcast; the outcome is tracked by
// the flow hooks.
func (ws *WebServer) mutate(w http.ResponseWriter, r *http.Request, action types.Action,
	run func(context.Context, string) (*fund.TxHandle, error)) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with an amount")
		return
	}

	handle, err := run(r.Context(), req.Amount)
	if err != nil {
		_, kind := classify(err)
		metrics.RecordRejection(action, kind)
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusAccepted, handle.Broadcast)
}

func (ws *WebServer) decodeDraft(w http.ResponseWriter, r *http.Request) (types.FundDraft, bool) {
	var draft types.FundDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON fund draft: "+err.Error())
		return types.FundDraft{}, false
	}
	return draft, true
}

func (ws *WebServer) handleCreateFund(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Lifecycle == nil || ws.deps.Sender == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	draft, ok := ws.decodeDraft(w, r)
	if !ok {
		return
	}

	b, err := ws.deps.Lifecycle.CreateFund(r.Context(), draft, ws.deps.Sender)
	if err != nil {
		_, kind := classify(err)
		metrics.RecordRejection(types.ActionCreateFund, kind)
		ws.writeError(w, err)
		return
	}
	if ws.deps.TrackCreation != nil {
		ws.deps.TrackCreation(b)
	}
	ws.writeJSONResponse(w, http.StatusAccepted, b)
}

func (ws *WebServer) handleEncodeFund(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Lifecycle == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	draft, ok := ws.decodeDraft(w, r)
	if !ok {
		return
	}

	var owner common.Address
	if ws.deps.Sender != nil {
		owner = ws.deps.Sender.Address()
	}
	call, encoded, err := ws.deps.Lifecycle.Prepare(draft, owner)
	if err != nil {
		ws.writeError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, encodeResponse{
		To:                  call.To,
		Data:                call.Data,
		FeeManagerConfig:    encoded.FeeManagerConfig,
		PolicyManagerConfig: encoded.PolicyManagerConfig,
		Fees:                modules(encoded.Fees),
		Policies:            modules(encoded.Policies),
	})
}

func (ws *WebServer) handleLifecycleState(w http.ResponseWriter, _ *http.Request) {
	if ws.deps.Lifecycle == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	current, lastErr := ws.deps.Lifecycle.State()
	response := map[string]interface{}{"state": current}
	if lastErr != nil {
		response["reason"] = lastErr.Error()
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Journal == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	limit := queryInt(r, "limit", 20, 100)
	records, err := ws.deps.Journal.GetRecentTransactions(r.Context(), limit)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"transactions": records,
		"count":        len(records),
		"limit":        limit,
	})
}

func (ws *WebServer) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Journal == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	record, err := ws.deps.Journal.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, record)
}

func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	if ws.deps.Journal == nil {
		ws.writeError(w, errUnavailable)
		return
	}
	limit := queryInt(r, "limit", 20, 100)
	records, err := ws.deps.Journal.GetRecentSnapshots(r.Context(), ws.deps.Vault, limit)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": records,
		"count":     len(records),
		"limit":     limit,
	})
}

// queryInt reads a positive integer query parameter, falling back to def when absent or out of range.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > max {
		return def
	}
	return v
}

func modules(settings []types.EncodedModuleSetting) []moduleResponse {
	out := make([]moduleResponse, 0, len(settings))
	for _, s := range settings {
		out = append(out, moduleResponse{Module: s.Module, Settings: s.Settings})
	}
	return out
}
