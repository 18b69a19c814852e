package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market constants
const (
	MarketKOSPI  = "KOSPI"
	MarketKOSDAQ = "KOSDAQ"
)

// StockInfo represents listing information and basic fundamentals
// for a KRX stock
type StockInfo struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Market        string    `json:"market,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	MarketCap     *int64    `json:"market_cap,omitempty"`
	PER           *float64  `json:"per,omitempty"`
	PBR           *float64  `json:"pbr,omitempty"`
	EPS           *float64  `json:"eps,omitempty"`
	BPS           *float64  `json:"bps,omitempty"`
	DividendYield *float64  `json:"dividend_yield,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// MarketStock is one row of a market ranking such as the daily
// top-by-trading-value list
type MarketStock struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
	TradingValue int64           `json:"trading_value"`
	ChangeRate   float64         `json:"change_rate"`
}

// WatchItem represents a stock on the daily analysis watchlist
type WatchItem struct {
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	Enabled   bool      `json:"enabled"`
	Priority  int       `json:"priority"` // 1=high, 2=medium, 3=low
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
