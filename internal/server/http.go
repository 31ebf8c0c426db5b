package server

import (
	"LendAuction/internal/ingestion"
	"LendAuction/internal/observability"
	"LendAuction/internal/projection"
	"LendAuction/internal/query"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer serves the JSON API: command injection on POST endpoints,
// projection-backed queries on GET. NATS remains the high-throughput
// ingestion surface; this API exists for tooling, dashboards, and admin
// operations.
type HTTPServer struct {
	httpServer *http.Server
	ingest     *ingestion.IngestService
	queries    *query.QueryService
	db         *sql.DB
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func NewHTTPServer(
	addr string,
	ingest *ingestion.IngestService,
	queries *query.QueryService,
	db *sql.DB,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
) *HTTPServer {
	s := &HTTPServer{
		ingest:  ingest,
		queries: queries,
		db:      db,
		health:  health,
		metrics: metrics,
		log:     observability.NewLogger("http"),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/admin/initialize", s.instrument("admin_initialize", s.handleInitialize))
	mux.HandleFunc("POST /v1/deposits", s.instrument("deposit", s.handleDeposit))
	mux.HandleFunc("POST /v1/bids", s.instrument("submit_bid", s.handleSubmitBid))
	mux.HandleFunc("POST /v1/asks", s.instrument("submit_ask", s.handleSubmitAsk))
	mux.HandleFunc("POST /v1/loans/repay", s.instrument("repay_loan", s.handleRepay))
	mux.HandleFunc("POST /v1/loans/liquidate", s.instrument("liquidate_loan", s.handleLiquidate))
	mux.HandleFunc("POST /v1/maintenance/cleanup", s.instrument("cleanup_shard", s.handleCleanup))
	mux.HandleFunc("POST /v1/fees/withdraw", s.instrument("withdraw_fees", s.handleWithdrawFees))

	mux.HandleFunc("GET /v1/users/{user}/balances", s.instrument("get_balances", s.handleGetBalances))
	mux.HandleFunc("GET /v1/users/{user}/balances/{asset}", s.instrument("get_balance", s.handleGetBalance))
	mux.HandleFunc("GET /v1/users/{user}/journal", s.instrument("get_journal", s.handleGetJournal))
	mux.HandleFunc("GET /v1/shards/{shard}/book", s.instrument("get_book", s.handleGetBook))
	mux.HandleFunc("GET /v1/loans", s.instrument("get_loans", s.handleGetLoans))
	mux.HandleFunc("GET /v1/fees/vaults", s.instrument("get_fee_vaults", s.handleGetFeeVaults))
	mux.HandleFunc("GET /v1/events", s.instrument("get_events", s.handleGetEvents))
	mux.HandleFunc("GET /v1/admin/integrity", s.instrument("verify_integrity", s.handleVerifyIntegrity))
	mux.HandleFunc("POST /v1/admin/projections/rebuild", s.instrument("rebuild_projections", s.handleRebuildProjections))

	mux.HandleFunc("GET /healthz", health.LivenessHandler)
	mux.HandleFunc("GET /readyz", health.ReadinessHandler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// instrument wraps a handler with request metrics.
func (s *HTTPServer) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// --- command handlers ---

type initializeRequest struct {
	Admin           string   `json:"admin"`
	ShardCount      uint64   `json:"shard_count"`
	SupportedAssets []string `json:"supported_assets"`
}

func (s *HTTPServer) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	admin, err := uuid.Parse(req.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse admin: %w", err))
		return
	}
	if err := s.ingest.InjectInitialize(r.Context(), admin, req.ShardCount, req.SupportedAssets); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type depositRequest struct {
	UserID string `json:"user_id"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *HTTPServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse user_id: %w", err))
		return
	}
	if err := s.ingest.InjectDeposit(r.Context(), userID, req.Asset, req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type submitBidRequest struct {
	Lender     string `json:"lender"`
	Asset      string `json:"asset"`
	Amount     uint64 `json:"amount"`
	MinRate    uint8  `json:"min_rate"`
	DurationUs int64  `json:"duration_us"`
}

func (s *HTTPServer) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	lender, err := uuid.Parse(req.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse lender: %w", err))
		return
	}
	duration := time.Duration(req.DurationUs) * time.Microsecond
	if err := s.ingest.InjectSubmitBid(r.Context(), lender, req.Asset, req.Amount, req.MinRate, duration); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type submitAskRequest struct {
	Borrower        string `json:"borrower"`
	Asset           string `json:"asset"`
	Amount          uint64 `json:"amount"`
	MaxRate         uint8  `json:"max_rate"`
	Collateral      uint64 `json:"collateral"`
	CollateralAsset string `json:"collateral_asset"`
}

func (s *HTTPServer) handleSubmitAsk(w http.ResponseWriter, r *http.Request) {
	var req submitAskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	borrower, err := uuid.Parse(req.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse borrower: %w", err))
		return
	}
	if err := s.ingest.InjectSubmitAsk(r.Context(), borrower, req.Asset, req.Amount, req.MaxRate, req.Collateral, req.CollateralAsset); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type repayRequest struct {
	Borrower       string `json:"borrower"`
	Shard          uint64 `json:"shard_id"`
	LoanIndex      uint64 `json:"loan_index"`
	RepaymentAsset string `json:"repayment_asset"`
}

func (s *HTTPServer) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	borrower, err := uuid.Parse(req.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse borrower: %w", err))
		return
	}
	if err := s.ingest.InjectRepay(r.Context(), borrower, req.Shard, req.LoanIndex, req.RepaymentAsset); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type liquidateRequest struct {
	Liquidator      string `json:"liquidator"`
	Shard           uint64 `json:"shard_id"`
	LoanIndex       uint64 `json:"loan_index"`
	MinimumProceeds uint64 `json:"minimum_proceeds"`
}

func (s *HTTPServer) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	liquidator, err := uuid.Parse(req.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse liquidator: %w", err))
		return
	}
	if err := s.ingest.InjectLiquidate(r.Context(), liquidator, req.Shard, req.LoanIndex, req.MinimumProceeds); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type cleanupRequest struct {
	Shard uint64 `json:"shard_id"`
}

func (s *HTTPServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if err := s.ingest.InjectCleanup(r.Context(), req.Shard); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

type withdrawFeesRequest struct {
	Caller string `json:"caller"`
	Shard  uint64 `json:"shard_id"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *HTTPServer) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req withdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	caller, err := uuid.Parse(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse caller: %w", err))
		return
	}
	if err := s.ingest.InjectWithdrawFees(r.Context(), caller, req.Shard, req.Asset, req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeAccepted(w)
}

// --- query handlers ---

func (s *HTTPServer) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse user: %w", err))
		return
	}
	balances, err := s.queries.GetBalances(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *HTTPServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse user: %w", err))
		return
	}
	balance, err := s.queries.GetBalance(r.Context(), userID, r.PathValue("asset"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *HTTPServer) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse user: %w", err))
		return
	}
	limit := queryInt(r, "limit", 100, 500)
	before := queryInt64Ptr(r, "before")

	entries, err := s.queries.GetJournalHistory(r.Context(), userID, limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *HTTPServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	shard, err := strconv.ParseUint(r.PathValue("shard"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse shard: %w", err))
		return
	}
	book, err := s.queries.GetBookDepth(r.Context(), shard)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *HTTPServer) handleGetLoans(w http.ResponseWriter, r *http.Request) {
	var filter query.LoanFilter

	if v := r.URL.Query().Get("borrower"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse borrower: %w", err))
			return
		}
		filter.Borrower = &id
	}
	if v := r.URL.Query().Get("lender"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse lender: %w", err))
			return
		}
		filter.Lender = &id
	}
	if v := r.URL.Query().Get("shard"); v != "" {
		shard, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse shard: %w", err))
			return
		}
		filter.Shard = &shard
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	loans, err := s.queries.GetLoans(r.Context(), filter, queryInt(r, "limit", 100, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *HTTPServer) handleGetFeeVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.queries.GetFeeVaults(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, vaults)
}

func (s *HTTPServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 500)
	before := queryInt64Ptr(r, "before")

	events, err := s.queries.GetRecentEvents(r.Context(), limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildProjections(r.Context(), s.db); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAccepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func queryInt64Ptr(r *http.Request, name string) *int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
