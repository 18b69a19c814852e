package collectors

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/krxlab/stock-insight/internal/cache"
	"github.com/krxlab/stock-insight/internal/models"
)

const krxDateFormat = "20060102"

// ErrStockNotFound is returned when the market data API has no listing for
// a code
var ErrStockNotFound = errors.New("stock not found")

// rankingFetchSize is how many rows one ranking fetch pulls; change-rate
// queries filter and re-sort this same window
const rankingFetchSize = 100

// PriceCollector fetches daily bars, listing info and market rankings from
// the market data API.
//
// Endpoints consumed:
//
//	GET {base}/chart/daily?code={code}&from={yyyymmdd}&to={yyyymmdd}
//	GET {base}/stock/{code}
//	GET {base}/ranking/trading-value?market={market}&top={n}
type PriceCollector struct {
	baseURL string
	client  *Client
	cache   *cache.Cache
	logger  zerolog.Logger
}

// NewPriceCollector builds a price collector. cache may be nil to disable
// response caching.
func NewPriceCollector(baseURL string, client *Client, c *cache.Cache, logger zerolog.Logger) *PriceCollector {
	return &PriceCollector{
		baseURL: baseURL,
		client:  client,
		cache:   c,
		logger:  logger.With().Str("collector", "prices").Logger(),
	}
}

type wireBar struct {
	Date         string          `json:"date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
	TradingValue decimal.Decimal `json:"trading_value"`
	ChangeRate   *float64        `json:"change_rate"`
}

type dailyChartResponse struct {
	Code string    `json:"code"`
	Bars []wireBar `json:"bars"`
}

type wireStock struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Market        string   `json:"market"`
	Sector        string   `json:"sector"`
	MarketCap     *int64   `json:"market_cap"`
	PER           *float64 `json:"per"`
	PBR           *float64 `json:"pbr"`
	EPS           *float64 `json:"eps"`
	BPS           *float64 `json:"bps"`
	DividendYield *float64 `json:"dividend_yield"`
}

type rankingResponse struct {
	Date   string               `json:"date"`
	Stocks []models.MarketStock `json:"stocks"`
}

// GetDailyPrices fetches daily bars for a code over [from, to], oldest first
func (pc *PriceCollector) GetDailyPrices(ctx context.Context, code string, from, to time.Time) ([]models.PricePoint, error) {
	rangeKey := fmt.Sprintf("%s-%s", from.Format(krxDateFormat), to.Format(krxDateFormat))
	cacheKey := cache.PricesKey(code, rangeKey)

	var cached []models.PricePoint
	if pc.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	reqURL := fmt.Sprintf("%s/chart/daily?code=%s&from=%s&to=%s",
		pc.baseURL, url.QueryEscape(code), from.Format(krxDateFormat), to.Format(krxDateFormat))

	var resp dailyChartResponse
	if err := pc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get daily prices for %s: %w", code, err)
	}

	prices := make([]models.PricePoint, 0, len(resp.Bars))
	for _, bar := range resp.Bars {
		date, err := time.Parse(krxDateFormat, bar.Date)
		if err != nil {
			pc.logger.Warn().Str("code", code).Str("date", bar.Date).Msg("skipping bar with malformed date")
			continue
		}

		tradingValue := bar.TradingValue
		if tradingValue.IsZero() {
			// Feed omits trading value on some markets; approximate as
			// close * volume
			tradingValue = bar.Close.Mul(decimal.NewFromInt(bar.Volume))
		}

		prices = append(prices, models.PricePoint{
			Code:         code,
			Date:         date,
			Open:         bar.Open,
			High:         bar.High,
			Low:          bar.Low,
			Close:        bar.Close,
			Volume:       bar.Volume,
			TradingValue: tradingValue,
			ChangeRate:   bar.ChangeRate,
		})
	}

	pc.cacheSet(ctx, cacheKey, prices)
	return prices, nil
}

// GetStockInfo fetches listing info and basic fundamentals for a code
func (pc *PriceCollector) GetStockInfo(ctx context.Context, code string) (*models.StockInfo, error) {
	reqURL := fmt.Sprintf("%s/stock/%s", pc.baseURL, url.PathEscape(code))

	var resp wireStock
	if err := pc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrStockNotFound, code)
		}
		return nil, fmt.Errorf("failed to get stock info for %s: %w", code, err)
	}

	market := resp.Market
	if market == "" {
		market = models.MarketKOSPI
	}

	return &models.StockInfo{
		Code:          code,
		Name:          resp.Name,
		Market:        market,
		Sector:        resp.Sector,
		MarketCap:     resp.MarketCap,
		PER:           resp.PER,
		PBR:           resp.PBR,
		EPS:           resp.EPS,
		BPS:           resp.BPS,
		DividendYield: resp.DividendYield,
	}, nil
}

// TopByTradingValue returns the n stocks with the highest trading value on
// the latest trading date
func (pc *PriceCollector) TopByTradingValue(ctx context.Context, market string, n int) ([]models.MarketStock, error) {
	stocks, err := pc.fetchRanking(ctx, market)
	if err != nil {
		return nil, err
	}
	if n > len(stocks) {
		n = len(stocks)
	}
	return stocks[:n], nil
}

// TopByChangeRate returns the n biggest movers on the latest trading date.
// ascending selects the biggest losers instead of gainers; rows below
// minTradingValue KRW are dropped so illiquid names do not dominate.
func (pc *PriceCollector) TopByChangeRate(ctx context.Context, market string, n int, ascending bool, minTradingValue int64) ([]models.MarketStock, error) {
	stocks, err := pc.fetchRanking(ctx, market)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.MarketStock, 0, len(stocks))
	for _, s := range stocks {
		if s.TradingValue >= minTradingValue {
			filtered = append(filtered, s)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if ascending {
			return filtered[i].ChangeRate < filtered[j].ChangeRate
		}
		return filtered[i].ChangeRate > filtered[j].ChangeRate
	})

	if n > len(filtered) {
		n = len(filtered)
	}
	return filtered[:n], nil
}

// fetchRanking pulls the trading-value ranking once per cache window; both
// ranking views derive from the same rows
func (pc *PriceCollector) fetchRanking(ctx context.Context, market string) ([]models.MarketStock, error) {
	if market == "" {
		market = models.MarketKOSPI
	}
	cacheKey := cache.RankingKey(market)

	var cached []models.MarketStock
	if pc.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	reqURL := fmt.Sprintf("%s/ranking/trading-value?market=%s&top=%d",
		pc.baseURL, url.QueryEscape(market), rankingFetchSize)

	var resp rankingResponse
	if err := pc.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get trading value ranking: %w", err)
	}

	pc.cacheSet(ctx, cacheKey, resp.Stocks)
	return resp.Stocks, nil
}

func (pc *PriceCollector) cacheGet(ctx context.Context, key string, dest any) bool {
	if pc.cache == nil {
		return false
	}
	found, err := pc.cache.GetJSON(ctx, key, dest)
	if err != nil {
		pc.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return found
}

func (pc *PriceCollector) cacheSet(ctx context.Context, key string, value any) {
	if pc.cache == nil {
		return
	}
	if err := pc.cache.SetJSON(ctx, key, value); err != nil {
		pc.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// IsValidCode reports whether code looks like a KRX ticker (six digits)
func IsValidCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
