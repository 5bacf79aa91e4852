package models

// Requests for the analysis HTTP endpoints. Defined in domain for consistency and reuse.

type MarketDataRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type IndicatorsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
}

type StrategyRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
}

type BacktestRequest struct {
	Symbol         string  `query:"symbol" json:"symbol" validate:"required"`
	Strategy       string  `query:"strategy" json:"strategy" default:"fused" validate:"oneof=fused rsi_macd ma_crossover combined"`
	InitialCapital float64 `query:"initial_capital" json:"initial_capital" default:"10000" validate:"gt=0"`
	Commission     float64 `query:"commission" json:"commission" validate:"gte=0,lt=1"`
	N              int     `query:"n" json:"n" default:"500" validate:"gte=2,lte=50000"`
	From           string  `query:"from" json:"from"`
	To             string  `query:"to" json:"to"`
	Async          bool    `query:"async" json:"async"`
}

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type ResultsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}
