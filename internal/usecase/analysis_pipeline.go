package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/internal/services/fusion"
	"QuantLab/internal/services/indicator"
	applogger "QuantLab/pkg/logger"
)

// AnalysisPipeline chains the indicator engine and the signal fuser over
// stored bars: fetch, compute, classify, fuse, journal, publish. Decisions
// survive even when the optional advisor or the Kafka leg is down.
type AnalysisPipeline struct {
	store   domrepo.BarStore
	engine  *indicator.Engine
	fuser   *fusion.Fuser
	advisor domsvc.Advisor
	journal domrepo.Journal
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewAnalysisPipeline(
	store domrepo.BarStore,
	engine *indicator.Engine,
	fuser *fusion.Fuser,
	advisor domsvc.Advisor,
	journal domrepo.Journal,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
) *AnalysisPipeline {
	return &AnalysisPipeline{
		store:   store,
		engine:  engine,
		fuser:   fuser,
		advisor: advisor,
		journal: journal,
		pub:     pub,
		metrics: metrics,
	}
}

// SetLogger injects a structured logger.
func (a *AnalysisPipeline) SetLogger(l *applogger.Logger) { a.logger = l }

type SnapshotParams struct {
	Symbol string
	N      int
}

// IndicatorSnapshot is the latest indicator vector with its classification.
type IndicatorSnapshot struct {
	Symbol     string                        `json:"symbol"`
	Timestamp  time.Time                     `json:"timestamp"`
	Bars       int                           `json:"bars"`
	Indicators models.IndicatorVector        `json:"indicators"`
	States     map[string]models.SignalState `json:"states"`
}

// Snapshot computes indicators over the latest N bars and returns the
// final vector together with its per-indicator states.
func (a *AnalysisPipeline) Snapshot(ctx context.Context, p SnapshotParams) (*IndicatorSnapshot, error) {
	bars, err := a.fetchLatest(ctx, p.Symbol, p.N)
	if err != nil {
		return nil, err
	}

	vec, err := a.engine.Latest(bars)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	return &IndicatorSnapshot{
		Symbol:     p.Symbol,
		Timestamp:  bars[len(bars)-1].Timestamp,
		Bars:       len(bars),
		Indicators: vec,
		States:     a.fuser.Classify(vec),
	}, nil
}

type DecideParams struct {
	Symbol string
	N      int
}

// Decide runs the full pipeline for one symbol: latest bars, indicator
// vector, optional advisory vote, fusion. The resulting record is journaled
// and published; a failed publish degrades to a warning.
func (a *AnalysisPipeline) Decide(ctx context.Context, p DecideParams) (*models.DecisionRecord, error) {
	start := time.Now()

	bars, err := a.fetchLatest(ctx, p.Symbol, p.N)
	if err != nil {
		return nil, err
	}

	vec, err := a.engine.Latest(bars)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	states := a.fuser.Classify(vec)
	quorum := len(states) >= a.fuser.Config().MinIndicators

	var advice *models.Decision
	if a.advisor != nil {
		d, ok, aerr := a.advisor.Advise(ctx, p.Symbol, vec)
		switch {
		case aerr != nil:
			a.metrics.RecordError("advisor")
			if a.logger != nil {
				a.logger.Warn("advisor unavailable, fusing without advice",
					applogger.String("symbol", p.Symbol),
					applogger.Error(aerr))
			}
		case ok:
			advice = &d
		}
	}

	dec := a.fuser.FuseWithAdvice(vec, advice)

	rec := &models.DecisionRecord{
		ID:        uuid.NewString(),
		Symbol:    p.Symbol,
		Timestamp: bars[len(bars)-1].Timestamp,
		Decision:  dec,
		States:    states,
		Advisory:  advice != nil && quorum,
	}

	if err := a.journal.SaveDecision(ctx, rec); err != nil {
		a.metrics.RecordError("journal_decision")
		return nil, fmt.Errorf("save decision: %w", err)
	}

	if a.pub != nil {
		if err := a.pub.PublishDecision(ctx, rec); err != nil {
			a.metrics.RecordError("publish_decision")
			if a.logger != nil {
				a.logger.Warn("decision publish failed",
					applogger.String("symbol", p.Symbol),
					applogger.String("id", rec.ID),
					applogger.Error(err))
			}
		}
	}

	a.metrics.RecordDecision(p.Symbol, string(dec.Action))
	a.metrics.RecordLatency("decide", time.Since(start).Seconds())

	return rec, nil
}

// History returns recent journaled decisions, newest first.
func (a *AnalysisPipeline) History(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return a.journal.RecentDecisions(ctx, symbol, limit)
}

func (a *AnalysisPipeline) fetchLatest(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if n <= 0 {
		n = 250
	}
	if n > 5000 {
		n = 5000
	}

	bars, err := a.store.GetLatestNBars(ctx, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("latest bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for symbol %s", domrepo.ErrNotFound, symbol)
	}
	return bars, nil
}
