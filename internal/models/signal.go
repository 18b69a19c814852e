package models

import "time"

// SignalType is the direction of a trading signal
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal represents a single trading recommendation derived from one
// indicator family. Strength grades how pronounced the triggering
// condition is, from 1 (weak) to 5 (strong); it is not a probability.
type Signal struct {
	Indicator string     `json:"indicator"`
	Type      SignalType `json:"type"`
	Reason    string     `json:"reason"`
	Strength  int        `json:"strength"`
}

// SignalRecord is a persisted signal row tied to an analysis run
type SignalRecord struct {
	ID          int        `json:"id"`
	Code        string     `json:"code"`
	Date        time.Time  `json:"date"`
	Indicator   string     `json:"indicator"`
	Type        SignalType `json:"type"`
	Reason      string     `json:"reason"`
	Strength    int        `json:"strength"`
	GeneratedAt time.Time  `json:"generated_at"`
}
