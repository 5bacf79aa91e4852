package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	applogger "QuantLab/pkg/logger"
)

// SQLiteJournal implements Journal on a local SQLite database. Scalar
// metrics live in indexed columns so listings stay cheap; trades and
// equity curves are stored as JSON blobs next to them.
type SQLiteJournal struct {
	mu sync.Mutex
	db *sql.DB
	l  *applogger.Logger
}

// NewSQLiteJournal opens (or creates) the journal database in WAL mode.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// SetLogger injects a structured logger.
func (j *SQLiteJournal) SetLogger(l *applogger.Logger) { j.l = l }

func (j *SQLiteJournal) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS decisions (
		id          TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		ts          DATETIME NOT NULL,
		action      TEXT NOT NULL,
		confidence  REAL NOT NULL,
		states      TEXT,
		advisory    INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol_ts ON decisions(symbol, ts);

	CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id           TEXT PRIMARY KEY,
		symbol           TEXT NOT NULL,
		strategy         TEXT NOT NULL,
		created_at       DATETIME NOT NULL,
		initial_capital  REAL NOT NULL,
		final_value      REAL NOT NULL,
		total_return     REAL NOT NULL,
		total_return_pct REAL NOT NULL,
		total_trades     INTEGER NOT NULL,
		winning_trades   INTEGER NOT NULL,
		losing_trades    INTEGER NOT NULL,
		win_rate         REAL NOT NULL,
		avg_profit       REAL NOT NULL,
		avg_loss         REAL NOT NULL,
		max_drawdown     REAL NOT NULL,
		sharpe_ratio     REAL NOT NULL,
		trades           TEXT,
		equity_curve     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol_created ON backtest_runs(symbol, created_at);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init journal schema: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) SaveDecision(ctx context.Context, rec *models.DecisionRecord) error {
	states, err := json.Marshal(rec.States)
	if err != nil {
		return fmt.Errorf("marshal states: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO decisions (id, symbol, ts, action, confidence, states, advisory)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Symbol,
		rec.Timestamp.Format(time.RFC3339),
		string(rec.Decision.Action),
		rec.Decision.Confidence,
		string(states),
		boolToInt(rec.Advisory),
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) RecentDecisions(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	q := `SELECT id, symbol, ts, action, confidence, states, advisory
	      FROM decisions WHERE symbol = ? ORDER BY ts DESC LIMIT ?`
	args := []interface{}{symbol, limit}
	if symbol == "" {
		q = `SELECT id, symbol, ts, action, confidence, states, advisory
		     FROM decisions ORDER BY ts DESC LIMIT ?`
		args = []interface{}{limit}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.DecisionRecord, 0, limit)
	for rows.Next() {
		var (
			rec      models.DecisionRecord
			ts       string
			action   string
			states   sql.NullString
			advisory int
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &ts, &action, &rec.Decision.Confidence, &states, &advisory); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Decision.Action = models.Action(action)
		rec.Advisory = advisory != 0
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = t
		}
		if states.Valid && states.String != "" && states.String != "null" {
			if err := json.Unmarshal([]byte(states.String), &rec.States); err != nil && j.l != nil {
				j.l.Warn("journal decision states unreadable",
					applogger.String("id", rec.ID),
					applogger.Error(err),
				)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SaveResult(ctx context.Context, res *models.BacktestResult) error {
	trades, err := json.Marshal(res.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}
	curve, err := json.Marshal(res.EquityCurve)
	if err != nil {
		return fmt.Errorf("marshal equity curve: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO backtest_runs (
			run_id, symbol, strategy, created_at,
			initial_capital, final_value, total_return, total_return_pct,
			total_trades, winning_trades, losing_trades, win_rate,
			avg_profit, avg_loss, max_drawdown, sharpe_ratio,
			trades, equity_curve
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		res.Symbol,
		res.Strategy,
		res.CreatedAt.Format(time.RFC3339),
		res.InitialCapital,
		res.FinalValue,
		res.TotalReturn,
		res.TotalReturnPct,
		res.TotalTrades,
		res.WinningTrades,
		res.LosingTrades,
		res.WinRate,
		res.AvgProfit,
		res.AvgLoss,
		res.MaxDrawdown,
		res.SharpeRatio,
		string(trades),
		string(curve),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetResult(ctx context.Context, runID string) (*models.BacktestResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	row := j.db.QueryRowContext(ctx,
		`SELECT run_id, symbol, strategy, created_at,
		        initial_capital, final_value, total_return, total_return_pct,
		        total_trades, winning_trades, losing_trades, win_rate,
		        avg_profit, avg_loss, max_drawdown, sharpe_ratio,
		        trades, equity_curve
		 FROM backtest_runs WHERE run_id = ?`, runID)

	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

func (j *SQLiteJournal) RecentResults(ctx context.Context, symbol string, limit int) ([]models.BacktestResult, error) {
	q := `SELECT run_id, symbol, strategy, created_at,
	             initial_capital, final_value, total_return, total_return_pct,
	             total_trades, winning_trades, losing_trades, win_rate,
	             avg_profit, avg_loss, max_drawdown, sharpe_ratio,
	             trades, equity_curve
	      FROM backtest_runs WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`
	args := []interface{}{symbol, limit}
	if symbol == "" {
		q = `SELECT run_id, symbol, strategy, created_at,
		            initial_capital, final_value, total_return, total_return_pct,
		            total_trades, winning_trades, losing_trades, win_rate,
		            avg_profit, avg_loss, max_drawdown, sharpe_ratio,
		            trades, equity_curve
		     FROM backtest_runs ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	defer rows.Close()

	out := make([]models.BacktestResult, 0, limit)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*models.BacktestResult, error) {
	var (
		res       models.BacktestResult
		createdAt string
		trades    sql.NullString
		curve     sql.NullString
	)
	err := row.Scan(
		&res.RunID, &res.Symbol, &res.Strategy, &createdAt,
		&res.InitialCapital, &res.FinalValue, &res.TotalReturn, &res.TotalReturnPct,
		&res.TotalTrades, &res.WinningTrades, &res.LosingTrades, &res.WinRate,
		&res.AvgProfit, &res.AvgLoss, &res.MaxDrawdown, &res.SharpeRatio,
		&trades, &curve,
	)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		res.CreatedAt = t
	}
	if trades.Valid && trades.String != "" {
		if err := json.Unmarshal([]byte(trades.String), &res.Trades); err != nil {
			return nil, fmt.Errorf("unmarshal trades: %w", err)
		}
	}
	if curve.Valid && curve.String != "" {
		if err := json.Unmarshal([]byte(curve.String), &res.EquityCurve); err != nil {
			return nil, fmt.Errorf("unmarshal equity curve: %w", err)
		}
	}
	return &res, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domrepo.Journal = (*SQLiteJournal)(nil)
