package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint represents one daily OHLCV bar for a stock.
// TradingValue and ChangeRate come from the KRX feed and are optional;
// indicator math reads Close only.
type PricePoint struct {
	ID           int             `json:"id,omitempty"`
	Code         string          `json:"code"`
	Date         time.Time       `json:"date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
	TradingValue decimal.Decimal `json:"trading_value,omitempty"`
	ChangeRate   *float64        `json:"change_rate,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
}
