package models

import "time"

// Indicator name constants
const (
	IndicatorRSI  = "RSI"
	IndicatorTrix = "TRIX"
	IndicatorMACD = "MACD"
)

// IndicatorPoint holds one trading day's derived indicator values,
// date-aligned with the price series it was computed from.
// A nil field means the value is undefined for that day (warm-up period
// or an arithmetic singularity), which is distinct from a computed zero.
type IndicatorPoint struct {
	Date          time.Time `json:"date"`
	RSI           *float64  `json:"rsi,omitempty"`
	Trix          *float64  `json:"trix,omitempty"`
	TrixSignal    *float64  `json:"trix_signal,omitempty"`
	MACD          *float64  `json:"macd,omitempty"`
	MACDSignal    *float64  `json:"macd_signal,omitempty"`
	MACDHistogram *float64  `json:"macd_histogram,omitempty"`
}
