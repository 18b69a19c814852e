package models

import (
	"time"

	"github.com/google/uuid"
)

// Report period labels
const (
	Period1W = "1w"
	Period1M = "1m"
	Period3M = "3m"
	Period6M = "6m"
	Period1Y = "1y"
)

// PeriodDays maps a period label to the number of calendar days it spans
var PeriodDays = map[string]int{
	Period1W: 7,
	Period1M: 30,
	Period3M: 90,
	Period6M: 180,
	Period1Y: 365,
}

// AIAnalysis holds model-generated commentary for a report.
// SentimentScore runs from -1 (bearish) to 1 (bullish).
type AIAnalysis struct {
	NewsSummary    string    `json:"news_summary,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	KeyIssues      []string  `json:"key_issues,omitempty"`
	Opinion        string    `json:"opinion,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// StockReport aggregates everything one analysis run produced for a stock
type StockReport struct {
	ID          uuid.UUID        `json:"id"`
	Stock       StockInfo        `json:"stock"`
	Profile     *CompanyProfile  `json:"profile,omitempty"`
	Period      string           `json:"period"`
	Prices      []PricePoint     `json:"prices"`
	Indicators  []IndicatorPoint `json:"indicators"`
	Signals     []Signal         `json:"signals"`
	Financials  []FinancialData  `json:"financials,omitempty"`
	Disclosures []Disclosure     `json:"disclosures,omitempty"`
	News        []NewsArticle    `json:"news,omitempty"`
	Analysis    *AIAnalysis      `json:"analysis,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// LatestPrice returns the most recent price bar, or nil for an empty report
func (r *StockReport) LatestPrice() *PricePoint {
	if len(r.Prices) == 0 {
		return nil
	}
	return &r.Prices[len(r.Prices)-1]
}

// LatestIndicator returns the most recent indicator point, or nil
func (r *StockReport) LatestIndicator() *IndicatorPoint {
	if len(r.Indicators) == 0 {
		return nil
	}
	return &r.Indicators[len(r.Indicators)-1]
}

// ReportRecord is the persisted metadata for a rendered report file
type ReportRecord struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Period      string    `json:"period"`
	FilePath    string    `json:"file_path"`
	GeneratedAt time.Time `json:"generated_at"`
}
