package repository

import (
	"context"
	"time"

	"QuantLab/internal/domain/models"
)

// BarStore provides access to historical OHLCV bars for analysis and backtests.
// Reads return bars in ascending timestamp order.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, ev *models.BarEvent) error
	StoreBatch(ctx context.Context, evs []*models.BarEvent) error
	GetBars(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Bar, error)
	Health(ctx context.Context) error // ping
	Close() error
}
