package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/onchainfund/fundops/internal/fund"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/metrics"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/wallet"
	"github.com/shopspring/decimal"
)

var webLogger = logger.GetForComponent("web_server")

// StateSource is the published chain state.
type StateSource interface {
	Snapshot() (types.VaultSnapshot, bool)
	LastError() error
}

type Subscriber interface {
	Quote(amount decimal.Decimal) (types.SubscriptionQuote, error)
	Gate(ctx context.Context, amount string) fund.SubscriptionGate
	Approve(ctx context.Context, amount string) (*fund.TxHandle, error)
	Deposit(ctx context.Context, amount string) (*fund.TxHandle, error)
}

type Redeemer interface {
	Quote(shares decimal.Decimal) (types.RedemptionQuote, error)
	Gate(shares string) fund.Gate
	Redeem(ctx context.Context, shares string) (*fund.TxHandle, error)
}

type FundCreator interface {
	CreateFund(ctx context.Context, draft types.FundDraft, sender wallet.Sender) (types.Broadcast, error)
	Prepare(draft types.FundDraft, owner common.Address) (wallet.Call, types.EncodedConfig, error)
	State() (fund.State, error)
}

// Journal is the read side of the Postgres store. It may be nil when no database is configured.
type Journal interface {
	GetRecentTransactions(ctx context.Context, limit int) ([]state.TransactionRecord, error)
	GetTransaction(ctx context.Context, id string) (state.TransactionRecord, error)
	GetRecentSnapshots(ctx context.Context, vault common.Address, limit int) ([]state.SnapshotRecord, error)
	GetActivitySummary(ctx context.Context, vault common.Address, since time.Time) (*state.ActivitySummary, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server exposes. Any of them may be nil, which disables the
// matching routes with 503.
type Deps struct {
	Vault        common.Address
	State        StateSource
	Subscription Subscriber
	Redemption   Redeemer
	Lifecycle    FundCreator
	Sender       wallet.Sender
	Journal      Journal
	// TrackCreation is called with every fund creation broadcast. It owns confirmation tracking.
	TrackCreation func(types.Broadcast)
}

// WebServer serves the JSON API.
type WebServer struct {
	router *mux.Router
	port   string
	deps   Deps
	server *http.Server
}

func NewWebServer(port string, deps Deps) *WebServer {
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		deps:   deps,
	}
	ws.setupRoutes()
	return ws
}

// Handler returns the router, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet)
	ws.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/vault/snapshot", ws.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/vault/summary", ws.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/vault/performance", ws.handlePerformance).Methods(http.MethodGet)

	api.HandleFunc("/quote/subscription", ws.handleSubscriptionQuote).Methods(http.MethodGet)
	api.HandleFunc("/quote/redemption", ws.handleRedemptionQuote).Methods(http.MethodGet)
	api.HandleFunc("/subscription/gate", ws.handleSubscriptionGate).Methods(http.MethodGet)
	api.HandleFunc("/redemption/gate", ws.handleRedemptionGate).Methods(http.MethodGet)

	api.HandleFunc("/subscription/approve", ws.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/subscription/deposit", ws.handleDeposit).Methods(http.MethodPost)
	api.HandleFunc("/redemption/redeem", ws.handleRedeem).Methods(http.MethodPost)

	api.HandleFunc("/funds", ws.handleCreateFund).Methods(http.MethodPost)
	api.HandleFunc("/funds/encode", ws.handleEncodeFund).Methods(http.MethodPost)
	api.HandleFunc("/funds/state", ws.handleLifecycleState).Methods(http.MethodGet)

	api.HandleFunc("/transactions", ws.handleGetTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", ws.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods(http.MethodGet)

	ws.router.Use(metrics.Middleware)
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, kind, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     kind,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
