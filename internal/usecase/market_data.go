package usecase

import (
	"context"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/pkg/util"
)

// MarketDataUseCase provides business logic for retrieving stored bars.
type MarketDataUseCase struct {
	store domrepo.BarStore
}

func NewMarketDataUseCase(store domrepo.BarStore) *MarketDataUseCase {
	return &MarketDataUseCase{store: store}
}

type GetBarsParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

type GetBarsResult struct {
	Symbol string       `json:"symbol"`
	From   time.Time    `json:"from"`
	To     time.Time    `json:"to"`
	Count  int          `json:"count"`
	Bars   []models.Bar `json:"bars"`
}

func (uc *MarketDataUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.To.IsZero() {
		p.To = time.Now()
	}
	// bars are stored at minute resolution, so query on minute boundaries
	p.From, p.To = util.AlignFromTo(p.From, p.To, "1m")
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 5000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	bars, err := uc.store.GetBars(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}

	return &GetBarsResult{
		Symbol: p.Symbol,
		From:   p.From,
		To:     p.To,
		Count:  len(bars),
		Bars:   bars,
	}, nil
}
