package service

import (
	"context"

	"QuantLab/internal/domain/models"
)

// Advisor is an optional external opinion on one indicator vector, blended
// into fusion as a single extra vote. Implementations return ok=false to
// abstain; rule-based fusion must stand on its own when no advisor is
// wired in or the call fails.
type Advisor interface {
	Advise(ctx context.Context, symbol string, vec models.IndicatorVector) (models.Decision, bool, error)
}
