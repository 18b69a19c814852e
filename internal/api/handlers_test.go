package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stock-insight/internal/analyzer"
	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/database"
	"github.com/krxlab/stock-insight/internal/indicators"
	"github.com/krxlab/stock-insight/internal/models"
)

var (
	_ Store    = (*database.DB)(nil)
	_ Analyzer = (*analyzer.StockAnalyzer)(nil)
)

type mockStore struct {
	stocks  map[string]*models.StockInfo
	prices  []models.PricePoint
	signals []*models.SignalRecord
	reports []*models.ReportRecord
	watch   []*models.WatchItem

	lastPriceStart  time.Time
	lastPriceEnd    time.Time
	lastSignalLimit int
	lastSignalDate  time.Time
	lastReportLimit int
	lastEnabledOnly bool
}

func newMockStore() *mockStore {
	return &mockStore{stocks: make(map[string]*models.StockInfo)}
}

func (m *mockStore) GetStock(code string) (*models.StockInfo, error) {
	stock, ok := m.stocks[code]
	if !ok {
		return nil, fmt.Errorf("stock %s: %w", code, database.ErrNotFound)
	}
	return stock, nil
}

func (m *mockStore) GetPriceRange(code string, startDate, endDate time.Time) ([]models.PricePoint, error) {
	m.lastPriceStart, m.lastPriceEnd = startDate, endDate
	var out []models.PricePoint
	for _, p := range m.prices {
		if p.Code == code && !p.Date.Before(startDate) && !p.Date.After(endDate) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) GetSignalsByCode(code string, limit int) ([]*models.SignalRecord, error) {
	m.lastSignalLimit = limit
	if len(m.signals) > limit {
		return m.signals[:limit], nil
	}
	return m.signals, nil
}

func (m *mockStore) GetSignalsByDate(code string, date time.Time) ([]*models.SignalRecord, error) {
	m.lastSignalDate = date
	var out []*models.SignalRecord
	for _, s := range m.signals {
		if s.Code == code && s.Date.Format("2006-01-02") == date.Format("2006-01-02") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) GetRecentReports(code string, limit int) ([]*models.ReportRecord, error) {
	m.lastReportLimit = limit
	var out []*models.ReportRecord
	for _, r := range m.reports {
		if r.Code == code {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) UpsertWatchItem(w *models.WatchItem) error {
	for i, item := range m.watch {
		if item.Code == w.Code {
			m.watch[i] = w
			return nil
		}
	}
	m.watch = append(m.watch, w)
	return nil
}

func (m *mockStore) GetWatchItem(code string) (*models.WatchItem, error) {
	for _, item := range m.watch {
		if item.Code == code {
			return item, nil
		}
	}
	return nil, fmt.Errorf("watch item %s: %w", code, database.ErrNotFound)
}

func (m *mockStore) GetWatchlist(enabledOnly bool) ([]*models.WatchItem, error) {
	m.lastEnabledOnly = enabledOnly
	if !enabledOnly {
		return m.watch, nil
	}
	var out []*models.WatchItem
	for _, item := range m.watch {
		if item.Enabled {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockStore) SetWatchItemEnabled(code string, enabled bool) error {
	for _, item := range m.watch {
		if item.Code == code {
			item.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("watch item %s: %w", code, database.ErrNotFound)
}

func (m *mockStore) DeleteWatchItem(code string) error {
	for i, item := range m.watch {
		if item.Code == code {
			m.watch = append(m.watch[:i], m.watch[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("watch item %s: %w", code, database.ErrNotFound)
}

type mockAnalyzer struct {
	report     *models.StockReport
	err        error
	lastCode   string
	lastPeriod string
	calls      int
}

func (m *mockAnalyzer) Analyze(ctx context.Context, code, period string) (*models.StockReport, error) {
	m.calls++
	m.lastCode, m.lastPeriod = code, period
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func newTestRouter(store Store, an Analyzer) *mux.Router {
	h := NewHandler(store, an, indicators.DefaultParams(), zerolog.Nop())
	return SetupRoutes(h, zerolog.Nop())
}

func doRequest(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// seedBars stores one bar per day ending an hour ago, so day-window
// queries never land exactly on a bar timestamp
func seedBars(store *mockStore, code string, days int, startClose float64) {
	base := time.Now().Add(-time.Hour)
	for i := days - 1; i >= 0; i-- {
		px := decimal.NewFromFloat(startClose + float64(days-1-i)*100)
		store.prices = append(store.prices, models.PricePoint{
			Code:   code,
			Date:   base.Add(-time.Duration(i) * 24 * time.Hour),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: 1000,
		})
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(newMockStore(), &mockAnalyzer{})

	rec := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestGetStock(t *testing.T) {
	store := newMockStore()
	store.stocks["005930"] = &models.StockInfo{Code: "005930", Name: "삼성전자", Market: models.MarketKOSPI}
	router := newTestRouter(store, &mockAnalyzer{})

	t.Run("returns listing info", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.StockInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "삼성전자", got.Name)
		assert.Equal(t, models.MarketKOSPI, got.Market)
	})

	t.Run("unknown code is a 404", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/999999", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "error")
	})
}

func TestGetPriceHistory(t *testing.T) {
	store := newMockStore()
	seedBars(store, "005930", 10, 70000)
	router := newTestRouter(store, &mockAnalyzer{})

	t.Run("returns bars within the window", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/prices?days=7", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []models.PricePoint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 7)
	})

	t.Run("defaults to 30 days", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/prices", "")
		require.Equal(t, http.StatusOK, rec.Code)

		wantStart := time.Now().AddDate(0, 0, -defaultHistoryDays)
		assert.WithinDuration(t, wantStart, store.lastPriceStart, time.Minute)
	})

	t.Run("rejects out-of-range windows", func(t *testing.T) {
		for _, days := range []string{"0", "366", "abc"} {
			rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/prices?days="+days, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
		}
	})
}

func TestGetIndicators(t *testing.T) {
	store := newMockStore()
	seedBars(store, "005930", 140, 70000)
	router := newTestRouter(store, &mockAnalyzer{})

	t.Run("computes indicators over the requested window", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/indicators?days=30", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []models.IndicatorPoint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.NotEmpty(t, got)
		assert.Len(t, got, 30)

		cutoff := time.Now().AddDate(0, 0, -30).Add(-time.Minute)
		for _, p := range got {
			assert.True(t, p.Date.After(cutoff), "point %s precedes the window", p.Date)
		}

		// enough history precedes the window for every series to be defined
		first := got[0]
		require.NotNil(t, first.RSI)
		require.NotNil(t, first.MACD)
		require.NotNil(t, first.MACDSignal)
		require.NotNil(t, first.Trix)
		require.NotNil(t, first.TrixSignal)
		assert.InDelta(t, 100.0, *first.RSI, 0.001, "a strictly rising series pins RSI at 100")
	})

	t.Run("no stored bars is a 404", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/000660/indicators", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetSignals(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	for i := 0; i < 30; i++ {
		store.signals = append(store.signals, &models.SignalRecord{
			ID:        i + 1,
			Code:      "005930",
			Date:      now.AddDate(0, 0, -i),
			Indicator: models.IndicatorRSI,
			Type:      models.SignalBuy,
			Strength:  3,
		})
	}
	router := newTestRouter(store, &mockAnalyzer{})

	t.Run("applies the limit", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/signals?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []*models.SignalRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 5)
		assert.Equal(t, 5, store.lastSignalLimit)
	})

	t.Run("defaults the limit", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/signals", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultSignalLimit, store.lastSignalLimit)
	})

	t.Run("date narrows to one trading day", func(t *testing.T) {
		day := now.AddDate(0, 0, -3).Format("2006-01-02")
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/signals?date="+day, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, day, store.lastSignalDate.Format("2006-01-02"))

		var got []*models.SignalRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].ID)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/signals?date=03-01-2025", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetReports(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	for i := 0; i < 15; i++ {
		store.reports = append(store.reports, &models.ReportRecord{
			ID:          uuid.New(),
			Code:        "005930",
			Period:      models.Period3M,
			FilePath:    fmt.Sprintf("reports/005930_%d.html", i),
			GeneratedAt: now.AddDate(0, 0, -i),
		})
	}
	router := newTestRouter(store, &mockAnalyzer{})

	t.Run("lists recent reports up to the limit", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/reports?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []*models.ReportRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 5)
		assert.Equal(t, 5, store.lastReportLimit)
	})

	t.Run("defaults the limit", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/reports", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultReportLimit, store.lastReportLimit)
	})

	t.Run("rejects out-of-range limits", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/stocks/005930/reports?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyzeStock(t *testing.T) {
	report := &models.StockReport{
		ID:     uuid.New(),
		Stock:  models.StockInfo{Code: "005930", Name: "삼성전자"},
		Period: models.Period1M,
	}

	t.Run("runs the pipeline and returns the report", func(t *testing.T) {
		an := &mockAnalyzer{report: report}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/005930/analyze?period=1m", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "005930", an.lastCode)
		assert.Equal(t, models.Period1M, an.lastPeriod)

		var got models.StockReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, report.ID, got.ID)
		assert.Equal(t, "삼성전자", got.Stock.Name)
	})

	t.Run("defaults the period", func(t *testing.T) {
		an := &mockAnalyzer{report: report}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/005930/analyze", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.Period3M, an.lastPeriod)
	})

	t.Run("rejects malformed codes without running the pipeline", func(t *testing.T) {
		an := &mockAnalyzer{report: report}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/SAMSUNG/analyze", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, an.calls)
	})

	t.Run("rejects unknown periods", func(t *testing.T) {
		an := &mockAnalyzer{report: report}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/005930/analyze?period=2d", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, an.calls)
	})

	t.Run("maps unlisted codes to 404", func(t *testing.T) {
		an := &mockAnalyzer{err: fmt.Errorf("failed to resolve stock 999999: %w", collectors.ErrStockNotFound)}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/999999/analyze", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("maps pipeline failures to 502", func(t *testing.T) {
		an := &mockAnalyzer{err: fmt.Errorf("failed to collect prices for 005930: timeout")}
		router := newTestRouter(newMockStore(), an)

		rec := doRequest(router, http.MethodPost, "/api/v1/stocks/005930/analyze", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestWatchlist(t *testing.T) {
	t.Run("add stores an enabled item", func(t *testing.T) {
		store := newMockStore()
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodPost, "/api/v1/watchlist",
			`{"code":"005930","name":"삼성전자","priority":1}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var got models.WatchItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.Enabled)
		assert.Equal(t, 1, got.Priority)
		require.Len(t, store.watch, 1)
	})

	t.Run("add rejects malformed codes and bodies", func(t *testing.T) {
		store := newMockStore()
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodPost, "/api/v1/watchlist", `{"code":"93"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(router, http.MethodPost, "/api/v1/watchlist", `{"code":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.watch)
	})

	t.Run("list filters to enabled items", func(t *testing.T) {
		store := newMockStore()
		store.watch = []*models.WatchItem{
			{Code: "005930", Enabled: true},
			{Code: "000660", Enabled: false},
		}
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodGet, "/api/v1/watchlist?enabled=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, store.lastEnabledOnly)

		var got []*models.WatchItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "005930", got[0].Code)
	})

	t.Run("get returns a single item", func(t *testing.T) {
		store := newMockStore()
		store.watch = []*models.WatchItem{{Code: "005930", Name: "삼성전자", Enabled: true, Priority: 2}}
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodGet, "/api/v1/watchlist/005930", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.WatchItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "삼성전자", got.Name)
		assert.Equal(t, 2, got.Priority)

		rec = doRequest(router, http.MethodGet, "/api/v1/watchlist/999999", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("patch toggles enabled", func(t *testing.T) {
		store := newMockStore()
		store.watch = []*models.WatchItem{{Code: "005930", Enabled: true}}
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodPatch, "/api/v1/watchlist/005930", `{"enabled":false}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, store.watch[0].Enabled)

		rec = doRequest(router, http.MethodPatch, "/api/v1/watchlist/005930", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(router, http.MethodPatch, "/api/v1/watchlist/999999", `{"enabled":true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete removes the item", func(t *testing.T) {
		store := newMockStore()
		store.watch = []*models.WatchItem{{Code: "005930", Enabled: true}}
		router := newTestRouter(store, &mockAnalyzer{})

		rec := doRequest(router, http.MethodDelete, "/api/v1/watchlist/005930", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, store.watch)

		rec = doRequest(router, http.MethodDelete, "/api/v1/watchlist/005930", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?days=45", nil)

	v, err := queryInt(req, "days", 30, 1, 365)
	require.NoError(t, err)
	assert.Equal(t, 45, v)

	v, err = queryInt(req, "limit", 20, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 20, v, "missing parameters take the default")

	_, err = queryInt(httptest.NewRequest(http.MethodGet, "/?days=-1", nil), "days", 30, 1, 365)
	assert.Error(t, err)
}
