package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SeriesProvider supplies stored return series for the convenience endpoint.
type SeriesProvider interface {
	GetSeries(symbol string, limit int) ([]float64, error)
	GetMatrix(symbols []string, limit int) (*ReturnMatrix, error)
}

// Handlers exposes the dispatcher over HTTP.
type Handlers struct {
	dispatcher *Dispatcher
	provider   SeriesProvider
	log        zerolog.Logger
}

// NewHandlers creates risk HTTP handlers. The series provider may be nil when
// only the raw-returns endpoint is mounted.
func NewHandlers(dispatcher *Dispatcher, provider SeriesProvider, log zerolog.Logger) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		provider:   provider,
		log:        log.With().Str("component", "risk_handlers").Logger(),
	}
}

// EstimateRequest is the JSON payload of POST /api/risk/es.
type EstimateRequest struct {
	Returns  map[string][]float64 `json:"returns"`
	Columns  []string             `json:"columns,omitempty"` // explicit column order; defaults to sorted keys
	Symbols  []string             `json:"symbols,omitempty"` // load from the store instead of inline returns
	Lookback int                  `json:"lookback,omitempty"`

	P           float64   `json:"p,omitempty"`
	Method      string    `json:"method,omitempty"`
	Clean       string    `json:"clean,omitempty"`
	CleanAlpha  float64   `json:"clean_alpha,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Weights     []float64 `json:"weights,omitempty"`
	Invert      *bool     `json:"invert,omitempty"`
	Operational *bool     `json:"operational,omitempty"`
	ComputeSE   bool      `json:"compute_se,omitempty"`
	SEReps      int       `json:"se_replications,omitempty"`
	SESeed      int64     `json:"se_seed,omitempty"`
}

// EstimateResponse wraps the result with an analysis ID.
type EstimateResponse struct {
	ID       string        `json:"id"`
	Estimate *RiskEstimate `json:"estimate"`
}

// HandleEstimate runs an estimation over inline or stored returns.
// POST /api/risk/es
func (h *Handlers) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	matrix, err := h.resolveMatrix(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	call := NewRequest()
	call.Returns = matrix
	if req.P != 0 {
		call.P = req.P
	}
	if req.Method != "" {
		if call.Method, err = ParseMethod(req.Method); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Mode != "" {
		if call.Mode, err = ParseMode(req.Mode); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Clean != "" {
		if call.Clean, err = ParseCleanMethod(req.Clean); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.CleanAlpha != 0 {
		call.CleanAlpha = req.CleanAlpha
	}
	call.Weights = req.Weights
	if req.Invert != nil {
		call.Invert = *req.Invert
	}
	if req.Operational != nil {
		call.Operational = *req.Operational
	}
	call.ComputeSE = req.ComputeSE
	call.SE = SEConfig{Replications: req.SEReps, Seed: req.SESeed}

	est, err := h.dispatcher.Estimate(call)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info().
		Str("method", string(est.Method)).
		Str("mode", string(est.Mode)).
		Float64("p", est.P).
		Int("columns", len(est.Columns)).
		Int("issues", len(est.Issues)).
		Msg("ES estimate computed")

	h.writeJSON(w, http.StatusOK, EstimateResponse{
		ID:       uuid.New().String(),
		Estimate: est,
	})
}

// HandleEstimateSymbol runs a single-series estimation over stored returns.
// GET /api/risk/es/{symbol}?p=0.99&method=historical&lookback=252
func (h *Handlers) HandleEstimateSymbol(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.Error(w, "No return store configured", http.StatusNotImplemented)
		return
	}

	symbol := chi.URLParam(r, "symbol")
	call := NewRequest()

	if raw := r.URL.Query().Get("p"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid p", http.StatusBadRequest)
			return
		}
		call.P = p
	}
	if raw := r.URL.Query().Get("method"); raw != "" {
		method, err := ParseMethod(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call.Method = method
	}
	lookback := 252
	if raw := r.URL.Query().Get("lookback"); raw != "" {
		lb, err := strconv.Atoi(raw)
		if err != nil || lb <= 0 {
			http.Error(w, "Invalid lookback", http.StatusBadRequest)
			return
		}
		lookback = lb
	}

	series, err := h.provider.GetSeries(symbol, lookback)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load return series")
		http.Error(w, fmt.Sprintf("Failed to load returns for %s: %v", symbol, err), http.StatusInternalServerError)
		return
	}
	if len(series) == 0 {
		http.Error(w, fmt.Sprintf("No returns stored for %s", symbol), http.StatusNotFound)
		return
	}

	matrix, err := NewSingleSeries(symbol, series)
	if err != nil {
		h.writeError(w, err)
		return
	}
	call.Returns = matrix

	est, err := h.dispatcher.Estimate(call)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, EstimateResponse{
		ID:       uuid.New().String(),
		Estimate: est,
	})
}

// resolveMatrix builds the return matrix from inline data or the store.
func (h *Handlers) resolveMatrix(req EstimateRequest) (*ReturnMatrix, error) {
	if len(req.Symbols) > 0 {
		if h.provider == nil {
			return nil, fmt.Errorf("%w: no return store configured", ErrUnavailableCollaborator)
		}
		lookback := req.Lookback
		if lookback <= 0 {
			lookback = 252
		}
		return h.provider.GetMatrix(req.Symbols, lookback)
	}

	if len(req.Returns) == 0 {
		return nil, fmt.Errorf("%w: request carries no returns", ErrMissingInput)
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = make([]string, 0, len(req.Returns))
		for col := range req.Returns {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}
	return NewReturnMatrix(columns, req.Returns)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrInvalidMoments),
		errors.Is(err, ErrInsufficientTailData):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnavailableCollaborator):
		status = http.StatusNotImplemented
	}
	http.Error(w, err.Error(), status)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
