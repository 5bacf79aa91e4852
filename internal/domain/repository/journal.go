package repository

import (
	"context"
	"errors"

	"QuantLab/internal/domain/models"
)

// ErrNotFound is returned by lookups whose subject does not exist.
var ErrNotFound = errors.New("not found")

// Journal persists generated decisions and completed backtest results so
// they can be fetched back by ID or listed after the fact.
type Journal interface {
	Init(ctx context.Context) error
	SaveDecision(ctx context.Context, rec *models.DecisionRecord) error
	RecentDecisions(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error)
	SaveResult(ctx context.Context, res *models.BacktestResult) error
	GetResult(ctx context.Context, runID string) (*models.BacktestResult, error)
	RecentResults(ctx context.Context, symbol string, limit int) ([]models.BacktestResult, error)
	Close() error
}
