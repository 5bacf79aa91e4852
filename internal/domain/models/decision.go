package models

import "time"

// Action is the composite trading recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is the output of signal fusion for one bar: an action plus a
// confidence in [0,10]. Confidence is 0 on ties and when no indicator
// produced a usable state.
type Decision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// DecisionRecord is a journaled decision with its provenance: the symbol,
// the per-indicator states that voted, and whether an advisory vote was
// blended in.
type DecisionRecord struct {
	ID        string                 `json:"id"`
	Symbol    string                 `json:"symbol"`
	Timestamp time.Time              `json:"timestamp"`
	Decision  Decision               `json:"decision"`
	States    map[string]SignalState `json:"states,omitempty"`
	Advisory  bool                   `json:"advisory,omitempty"`
}
