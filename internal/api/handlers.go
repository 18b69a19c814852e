package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/database"
	"github.com/krxlab/stock-insight/internal/indicators"
	"github.com/krxlab/stock-insight/internal/models"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
	defaultSignalLimit = 20
	maxSignalLimit     = 200
	defaultReportLimit = 10
	maxReportLimit     = 100

	// extra bars fetched so on-demand indicators are already defined at
	// the start of the requested window
	indicatorWarmupDays = 90
)

// Store is the slice of the database layer the handlers use
type Store interface {
	GetStock(code string) (*models.StockInfo, error)
	GetPriceRange(code string, startDate, endDate time.Time) ([]models.PricePoint, error)
	GetSignalsByCode(code string, limit int) ([]*models.SignalRecord, error)
	GetSignalsByDate(code string, date time.Time) ([]*models.SignalRecord, error)
	GetRecentReports(code string, limit int) ([]*models.ReportRecord, error)
	UpsertWatchItem(w *models.WatchItem) error
	GetWatchItem(code string) (*models.WatchItem, error)
	GetWatchlist(enabledOnly bool) ([]*models.WatchItem, error)
	SetWatchItemEnabled(code string, enabled bool) error
	DeleteWatchItem(code string) error
}

// Analyzer runs the full report pipeline for one stock
type Analyzer interface {
	Analyze(ctx context.Context, code, period string) (*models.StockReport, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    Store
	analyzer Analyzer
	calc     *indicators.Calculator
	logger   zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(store Store, analyzer Analyzer, params indicators.Params, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		analyzer: analyzer,
		calc:     indicators.NewCalculator(params),
		logger:   logger,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetStock handles GET /api/v1/stocks/{code}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	stock, err := h.store.GetStock(code)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stock)
}

// GetPriceHistory handles GET /api/v1/stocks/{code}/prices
func (h *Handler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	days, err := queryInt(r, "days", defaultHistoryDays, 1, maxHistoryDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	end := time.Now()
	prices, err := h.store.GetPriceRange(code, end.AddDate(0, 0, -days), end)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prices)
}

// GetIndicators handles GET /api/v1/stocks/{code}/indicators. Indicators
// are computed on demand from stored bars rather than read from the
// snapshot table, so the response always reflects current parameters.
func (h *Handler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	days, err := queryInt(r, "days", defaultHistoryDays, 1, maxHistoryDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	end := time.Now()
	prices, err := h.store.GetPriceRange(code, end.AddDate(0, 0, -(days+indicatorWarmupDays)), end)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(prices) == 0 {
		respondError(w, http.StatusNotFound, "no price data for "+code)
		return
	}

	points := trimIndicators(h.calc.CalculateAll(prices), end.AddDate(0, 0, -days))
	respondJSON(w, http.StatusOK, points)
}

// GetSignals handles GET /api/v1/stocks/{code}/signals. A date parameter
// narrows the response to the signals recorded for that trading day.
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		signals, err := h.store.GetSignalsByDate(code, date)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, signals)
		return
	}

	limit, err := queryInt(r, "limit", defaultSignalLimit, 1, maxSignalLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := h.store.GetSignalsByCode(code, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, signals)
}

// GetReports handles GET /api/v1/stocks/{code}/reports
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	limit, err := queryInt(r, "limit", defaultReportLimit, 1, maxReportLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, err := h.store.GetRecentReports(code, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// AnalyzeStock handles POST /api/v1/stocks/{code}/analyze. The pipeline
// runs synchronously and the finished report is returned.
func (h *Handler) AnalyzeStock(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if !collectors.IsValidCode(code) {
		respondError(w, http.StatusBadRequest, "a six-digit stock code is required")
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = models.Period3M
	}
	if _, ok := models.PeriodDays[period]; !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown period %q", period))
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), code, period)
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("analysis failed")
		status := http.StatusBadGateway
		if errors.Is(err, collectors.ErrStockNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetWatchlist handles GET /api/v1/watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"

	items, err := h.store.GetWatchlist(enabledOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// GetWatchItem handles GET /api/v1/watchlist/{code}
func (h *Handler) GetWatchItem(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	item, err := h.store.GetWatchItem(code)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// AddWatchItem handles POST /api/v1/watchlist
func (h *Handler) AddWatchItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Priority int    `json:"priority"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !collectors.IsValidCode(req.Code) {
		respondError(w, http.StatusBadRequest, "a six-digit stock code is required")
		return
	}

	item := &models.WatchItem{
		Code:     req.Code,
		Name:     req.Name,
		Enabled:  true,
		Priority: req.Priority,
		Notes:    req.Notes,
	}
	if err := h.store.UpsertWatchItem(item); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// UpdateWatchItem handles PATCH /api/v1/watchlist/{code}
func (h *Handler) UpdateWatchItem(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.store.SetWatchItemEnabled(code, *req.Enabled); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveWatchItem handles DELETE /api/v1/watchlist/{code}
func (h *Handler) RemoveWatchItem(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	if err := h.store.DeleteWatchItem(code); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// trimIndicators drops points before the cutoff date
func trimIndicators(points []models.IndicatorPoint, cutoff time.Time) []models.IndicatorPoint {
	for i, p := range points {
		if !p.Date.Before(cutoff) {
			return points[i:]
		}
	}
	return nil
}

func queryInt(r *http.Request, name string, def, low, high int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < low || v > high {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, low, high)
	}
	return v, nil
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
