package models

import "time"

// Kafka event type constants
const (
	EventPriceBar         = "PRICE_BAR"
	EventSignalsGenerated = "SIGNALS_GENERATED"
)

// PriceBarEvent is the payload for one daily bar on the price topic
type PriceBarEvent struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	Bar       PricePoint `json:"bar"`
	Timestamp time.Time  `json:"timestamp"`
}

// SignalEvent is published after an analysis run that produced signals
type SignalEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Code      string    `json:"code"`
	Date      time.Time `json:"date"`
	Signals   []Signal  `json:"signals"`
	Timestamp time.Time `json:"timestamp"`
}
