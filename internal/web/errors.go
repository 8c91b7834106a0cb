package web

import (
	"errors"
	"net/http"

	"github.com/onchainfund/fundops/internal/analyzer"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/onchainfund/fundops/internal/utils"
)

var errUnavailable = errors.New("not available in this deployment")

// classify maps an error to its HTTP status and a stable kind for clients.
func classify(err error) (int, string) {
	var (
		cfgErr       *fund.ConfigurationError
		amountErr    *fund.InvalidAmountError
		assetErr     *fund.UnsupportedAssetError
		allowanceErr *fund.InsufficientAllowanceError
		rejectedErr  *fund.WalletRejectedError
		chainErr     *fund.ChainExecutionError
		readErr      *fund.NetworkReadError
	)

	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "configuration_error"
	case errors.As(err, &amountErr),
		errors.Is(err, utils.ErrAmountEmpty),
		errors.Is(err, utils.ErrAmountMalformed),
		errors.Is(err, utils.ErrAmountNotPositive):
		return http.StatusBadRequest, "invalid_amount"
	case errors.As(err, &assetErr):
		return http.StatusNotFound, "unsupported_asset"
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, analyzer.ErrInsufficientData):
		return http.StatusNotFound, "insufficient_history"
	case errors.Is(err, fund.ErrFlowBusy):
		return http.StatusConflict, "flow_busy"
	case errors.As(err, &allowanceErr):
		return http.StatusConflict, "insufficient_allowance"
	case errors.Is(err, fund.ErrAccountMismatch):
		return http.StatusConflict, "account_mismatch"
	case errors.As(err, &rejectedErr):
		return http.StatusUnprocessableEntity, "wallet_rejected"
	case errors.As(err, &chainErr):
		return http.StatusBadGateway, "chain_execution_error"
	case errors.As(err, &readErr):
		return http.StatusBadGateway, "network_read_error"
	case errors.Is(err, errUnavailable), errors.Is(err, state.ErrNotInitialized), errors.Is(err, fund.ErrFlowClosed),
		errors.Is(err, fund.ErrNoSender):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		webLogger.Error().Err(err).Str("kind", kind).Msg("Request failed")
	} else {
		webLogger.Debug().Err(err).Str("kind", kind).Msg("Request rejected")
	}
	ws.writeErrorResponse(w, status, kind, err.Error())
}
