package repository

import (
	"context"

	"QuantLab/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.BarEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	PublishBar(ctx context.Context, ev *models.BarEvent) error
	PublishBarBatch(ctx context.Context, evs []*models.BarEvent) error
	PublishDecision(ctx context.Context, rec *models.DecisionRecord) error
	PublishResult(ctx context.Context, res *models.BacktestResult) error
	Close() error
}

type Metrics interface {
	RecordBarStored(backend, symbol string)
	RecordDecision(symbol, action string)
	RecordBacktest(strategy, status string)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
