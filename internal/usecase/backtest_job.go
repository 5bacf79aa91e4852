package usecase

import (
	"context"
	"fmt"

	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/queue"
)

// JobTypeBacktestRun is the queue message type for asynchronous backtests.
const JobTypeBacktestRun = "backtest.run"

// BacktestJob executes queued backtest requests on a queue worker.
type BacktestJob struct {
	runner *BacktestRunner
	logger *applogger.Logger
}

func NewBacktestJob(runner *BacktestRunner, lgr *applogger.Logger) *BacktestJob {
	return &BacktestJob{runner: runner, logger: lgr}
}

func (j *BacktestJob) Name() string { return "backtest-runner" }

func (j *BacktestJob) Type() string { return JobTypeBacktestRun }

func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RunParams](payload)
	if err != nil {
		return fmt.Errorf("parse backtest payload: %w", err)
	}

	res, err := j.runner.Run(ctx, *p)
	if err != nil {
		return fmt.Errorf("run %s: %w", p.RunID, err)
	}

	if j.logger != nil {
		j.logger.Info("queued backtest finished",
			applogger.String("run_id", res.RunID),
			applogger.String("symbol", res.Symbol),
			applogger.String("strategy", res.Strategy))
	}
	return nil
}

var _ queue.Job = (*BacktestJob)(nil)
