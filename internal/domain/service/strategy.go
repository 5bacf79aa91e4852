package service

import "QuantLab/internal/domain/models"

// Strategy maps one bar's indicator vector to a trading decision during a
// backtest. Implementations are pure and deterministic so a run can be
// replayed bit-identically from the same inputs.
type Strategy interface {
	Name() string
	Decide(vec models.IndicatorVector) models.Decision
}
