package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialData represents one reporting period's key financials,
// amounts in KRW as reported to DART
type FinancialData struct {
	Code            string          `json:"code"`
	Period          string          `json:"period"`
	Revenue         decimal.Decimal `json:"revenue,omitempty"`
	OperatingProfit decimal.Decimal `json:"operating_profit,omitempty"`
	NetIncome       decimal.Decimal `json:"net_income,omitempty"`
	RevenueGrowth   *float64        `json:"revenue_growth,omitempty"`
	OperatingMargin *float64        `json:"operating_margin,omitempty"`
	NetMargin       *float64        `json:"net_margin,omitempty"`
	DebtRatio       *float64        `json:"debt_ratio,omitempty"`
	ROE             *float64        `json:"roe,omitempty"`
}

// Disclosure represents a corporate filing published through DART
type Disclosure struct {
	Title   string    `json:"title"`
	Filer   string    `json:"filer,omitempty"`
	FiledAt time.Time `json:"filed_at"`
	URL     string    `json:"url,omitempty"`
}

// CompanyProfile is the registry overview DART keeps for a listed company
type CompanyProfile struct {
	Name        string `json:"name"`
	EnglishName string `json:"english_name,omitempty"`
	CEO         string `json:"ceo,omitempty"`
	Founded     string `json:"founded,omitempty"`
	Address     string `json:"address,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
}
