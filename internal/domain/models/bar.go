package models

import "time"

// Bar represents one OHLCV observation for a fixed interval.
// Bars are immutable once produced by the collector; sequences are ordered
// by strictly increasing timestamps with no duplicates.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BarEvent wraps a Bar with its symbol for transport and storage.
// The analysis core operates on plain Bar sequences; the symbol is a
// routing key for Kafka partitioning and ClickHouse ordering.
type BarEvent struct {
	Symbol string `json:"symbol"`
	Bar
}
