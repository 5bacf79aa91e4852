package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/internal/services/backtest"
	"QuantLab/internal/services/fusion"
	"QuantLab/internal/services/indicator"
	"QuantLab/internal/services/strategy"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/queue"
)

// maxBacktestBars bounds one run's input so a bad range cannot pull the
// whole table through the simulator.
const maxBacktestBars = 20000

// BacktestRunner replays a strategy over stored bars: indicators per bar,
// one decision per bar, simulation, performance summary. Results are
// journaled under a run ID and published to Kafka. Runs execute inline or
// through the Redis queue.
type BacktestRunner struct {
	store    domrepo.BarStore
	journal  domrepo.Journal
	pub      domrepo.Publisher
	metrics  domrepo.Metrics
	engine   *indicator.Engine
	fuser    *fusion.Fuser
	defaults backtest.Config
	queue    *queue.RedisQueue
	logger   *applogger.Logger
}

func NewBacktestRunner(
	store domrepo.BarStore,
	journal domrepo.Journal,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
	engine *indicator.Engine,
	fuser *fusion.Fuser,
	defaults backtest.Config,
) *BacktestRunner {
	return &BacktestRunner{
		store:    store,
		journal:  journal,
		pub:      pub,
		metrics:  metrics,
		engine:   engine,
		fuser:    fuser,
		defaults: defaults,
	}
}

// SetQueue wires the Redis queue used by Enqueue. Without it only
// synchronous runs are available.
func (r *BacktestRunner) SetQueue(q *queue.RedisQueue) { r.queue = q }

// SetLogger injects a structured logger.
func (r *BacktestRunner) SetLogger(l *applogger.Logger) { r.logger = l }

// RunParams describes one backtest request. It doubles as the queue job
// payload, so every field must survive a JSON round trip.
type RunParams struct {
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	InitialCapital float64   `json:"initial_capital,omitempty"`
	Commission     float64   `json:"commission,omitempty"`
	From           time.Time `json:"from,omitempty"`
	To             time.Time `json:"to,omitempty"`
	N              int       `json:"n,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
}

// Run executes one backtest synchronously and returns the journaled result.
func (r *BacktestRunner) Run(ctx context.Context, p RunParams) (*models.BacktestResult, error) {
	start := time.Now()

	strat, cfg, err := r.prepare(p)
	if err != nil {
		return nil, err
	}

	bars, err := r.fetch(ctx, p)
	if err != nil {
		r.metrics.RecordBacktest(strat.Name(), "error")
		return nil, err
	}

	vectors, err := r.engine.Compute(bars)
	if err != nil {
		r.metrics.RecordBacktest(strat.Name(), "error")
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	decisions := make([]models.Decision, len(bars))
	for i := range vectors {
		decisions[i] = strat.Decide(vectors[i])
	}

	sim, err := backtest.NewSimulator(cfg)
	if err != nil {
		return nil, err
	}
	out, err := sim.Run(bars, decisions)
	if err != nil {
		r.metrics.RecordBacktest(strat.Name(), "error")
		return nil, fmt.Errorf("simulate: %w", err)
	}

	analyzer, err := backtest.NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	res := analyzer.Analyze(cfg.InitialCapital, out)

	res.RunID = p.RunID
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	res.Symbol = p.Symbol
	res.Strategy = strat.Name()
	res.CreatedAt = time.Now().UTC()

	if err := r.journal.SaveResult(ctx, res); err != nil {
		r.metrics.RecordError("journal_result")
		r.metrics.RecordBacktest(strat.Name(), "error")
		return nil, fmt.Errorf("save result: %w", err)
	}

	if r.pub != nil {
		if err := r.pub.PublishResult(ctx, res); err != nil {
			r.metrics.RecordError("publish_result")
			if r.logger != nil {
				r.logger.Warn("result publish failed",
					applogger.String("run_id", res.RunID),
					applogger.Error(err))
			}
		}
	}

	r.metrics.RecordBacktest(strat.Name(), "ok")
	r.metrics.RecordLatency("backtest", time.Since(start).Seconds())

	if r.logger != nil {
		r.logger.Info("backtest completed",
			applogger.String("run_id", res.RunID),
			applogger.String("symbol", res.Symbol),
			applogger.String("strategy", res.Strategy),
			applogger.Int("bars", len(bars)),
			applogger.Int("trades", res.TotalTrades),
			applogger.Duration("elapsed", time.Since(start)))
	}

	return res, nil
}

// Enqueue validates the request, assigns a run ID, and hands the job to the
// Redis queue. The result appears in the journal once a worker finishes.
func (r *BacktestRunner) Enqueue(ctx context.Context, p RunParams) (string, error) {
	if r.queue == nil {
		return "", fmt.Errorf("queue disabled")
	}
	if _, _, err := r.prepare(p); err != nil {
		return "", err
	}

	p.RunID = uuid.NewString()
	if err := r.queue.Enqueue(ctx, JobTypeBacktestRun, p); err != nil {
		r.metrics.RecordError("enqueue_backtest")
		return "", fmt.Errorf("enqueue backtest: %w", err)
	}

	if r.logger != nil {
		r.logger.Info("backtest enqueued",
			applogger.String("run_id", p.RunID),
			applogger.String("symbol", p.Symbol),
			applogger.String("strategy", p.Strategy))
	}
	return p.RunID, nil
}

// Result fetches a journaled run by ID.
func (r *BacktestRunner) Result(ctx context.Context, runID string) (*models.BacktestResult, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id required")
	}
	return r.journal.GetResult(ctx, runID)
}

// Recent lists journaled runs, newest first. Empty symbol lists all.
func (r *BacktestRunner) Recent(ctx context.Context, symbol string, limit int) ([]models.BacktestResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	return r.journal.RecentResults(ctx, symbol, limit)
}

// prepare resolves the strategy and merges per-request capital and
// commission overrides onto the configured defaults.
func (r *BacktestRunner) prepare(p RunParams) (domsvc.Strategy, backtest.Config, error) {
	var cfg backtest.Config
	if p.Symbol == "" {
		return nil, cfg, fmt.Errorf("symbol required")
	}

	stratName := p.Strategy
	if stratName == "" {
		stratName = strategy.NameFused
	}
	strat, err := strategy.New(stratName, r.fuser)
	if err != nil {
		return nil, cfg, err
	}

	cfg = r.defaults
	if p.InitialCapital > 0 {
		cfg.InitialCapital = p.InitialCapital
	}
	if p.Commission > 0 {
		cfg.Commission = p.Commission
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	return strat, cfg, nil
}

func (r *BacktestRunner) fetch(ctx context.Context, p RunParams) ([]models.Bar, error) {
	var (
		bars []models.Bar
		err  error
	)

	if !p.From.IsZero() || !p.To.IsZero() {
		from, to := p.From, p.To
		if to.IsZero() {
			to = time.Now()
		}
		if from.After(to) {
			return nil, fmt.Errorf("from must be <= to")
		}
		bars, err = r.store.GetBars(ctx, p.Symbol, from, to, maxBacktestBars)
	} else {
		n := p.N
		if n <= 0 {
			n = 500
		}
		if n > maxBacktestBars {
			n = maxBacktestBars
		}
		bars, err = r.store.GetLatestNBars(ctx, p.Symbol, n)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for symbol %s", domrepo.ErrNotFound, p.Symbol)
	}
	return bars, nil
}
