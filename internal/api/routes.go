package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"graf/internal/bands"
	"graf/internal/cfg"
	"graf/internal/db"
	"graf/internal/logging"
	"graf/internal/model"
	"graf/internal/ops"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Handler wraps dependencies for HTTP handlers.
type Handler struct {
	db       *db.DB
	cfg      *cfg.Config
	ops      *ops.Dispatcher
	bands    *bands.Picker
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// NewHandler creates a new API handler. A nil gatherer serves the default
// Prometheus registry.
func NewHandler(database *db.DB, config *cfg.Config, dispatcher *ops.Dispatcher, picker *bands.Picker, logger *zap.Logger, gatherer prometheus.Gatherer) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		db:       database,
		cfg:      config,
		ops:      dispatcher,
		bands:    picker,
		logger:   logger,
		gatherer: gatherer,
	}
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Graph operations
	mux.HandleFunc("POST /v1/ops", h.Operation)
	mux.HandleFunc("GET /v1/graph", h.Graph)
	mux.HandleFunc("GET /v1/audit", h.Audit)
	mux.HandleFunc("GET /v1/bands", h.Bands)

	return mux
}

// ----- Health -----

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.cfg.Version,
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context(), h.logger).Warn("database not reachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "not ready",
			Version: h.cfg.Version,
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ready",
		Version: h.cfg.Version,
	})
}

// ----- Graph -----

// Operation runs the operation named by the request's action field.
func (h *Handler) Operation(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", err)
		return
	}
	writeResult(w, h.ops.Dispatch(r.Context(), req))
}

// Graph returns every node and edge.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.ops.Dispatch(r.Context(), ops.Request{"action": "fetch_graph"}))
}

type AuditResponse struct {
	Entries []*model.AuditEntry `json:"entries"`
}

// Audit lists the most recent mutations, newest first.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.db.ListAudit(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("listing audit entries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list audit entries", nil)
		return
	}
	if entries == nil {
		entries = []*model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, AuditResponse{Entries: entries})
}

type BandsResponse struct {
	Default string                `json:"default"`
	Bands   map[string]bands.Band `json:"bands"`
}

// Bands lists the node id bands create_node can allocate from.
func (h *Handler) Bands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BandsResponse{
		Default: h.bands.DefaultName(),
		Bands:   h.bands.List(),
	})
}

// ----- Helpers -----

// httpStatus maps an operation status onto the closest HTTP status.
func httpStatus(s ops.Status) int {
	switch s {
	case ops.StatusOK:
		return http.StatusOK
	case ops.StatusInternal:
		return http.StatusInternalServerError
	case ops.StatusDuplicate, ops.StatusHasEdges:
		return http.StatusConflict
	case ops.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeResult(w http.ResponseWriter, res ops.Result) {
	writeJSON(w, httpStatus(res.Status), res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
