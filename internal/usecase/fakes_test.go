package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
)

// memBarStore is an in-memory BarStore keeping bars in insertion order,
// which the tests keep ascending by timestamp.
type memBarStore struct {
	mu   sync.Mutex
	bars map[string][]models.Bar
}

func newMemBarStore() *memBarStore {
	return &memBarStore{bars: make(map[string][]models.Bar)}
}

func (s *memBarStore) seed(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = append(s.bars[symbol], bars...)
}

func (s *memBarStore) Init(ctx context.Context) error   { return nil }
func (s *memBarStore) Health(ctx context.Context) error { return nil }
func (s *memBarStore) Close() error                     { return nil }

func (s *memBarStore) Store(ctx context.Context, ev *models.BarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[ev.Symbol] = append(s.bars[ev.Symbol], ev.Bar)
	return nil
}

func (s *memBarStore) StoreBatch(ctx context.Context, evs []*models.BarEvent) error {
	for _, ev := range evs {
		if err := s.Store(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *memBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bar
	for _, b := range s.bars[symbol] {
		if b.Timestamp.Before(from) || b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memBarStore) GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bars[symbol]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]models.Bar, len(all))
	copy(out, all)
	return out, nil
}

func (s *memBarStore) count(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars[symbol])
}

// memJournal is an in-memory Journal with injectable failures.
type memJournal struct {
	mu               sync.Mutex
	decisions        []models.DecisionRecord
	results          []models.BacktestResult
	saveDecisionErr  error
	saveResultErr    error
	lastResultsLimit int
}

func newMemJournal() *memJournal { return &memJournal{} }

func (j *memJournal) Init(ctx context.Context) error { return nil }
func (j *memJournal) Close() error                   { return nil }

func (j *memJournal) SaveDecision(ctx context.Context, rec *models.DecisionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.saveDecisionErr != nil {
		return j.saveDecisionErr
	}
	j.decisions = append(j.decisions, *rec)
	return nil
}

func (j *memJournal) RecentDecisions(ctx context.Context, symbol string, limit int) ([]models.DecisionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.DecisionRecord
	for i := len(j.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && j.decisions[i].Symbol != symbol {
			continue
		}
		out = append(out, j.decisions[i])
	}
	return out, nil
}

func (j *memJournal) SaveResult(ctx context.Context, res *models.BacktestResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.saveResultErr != nil {
		return j.saveResultErr
	}
	j.results = append(j.results, *res)
	return nil
}

func (j *memJournal) GetResult(ctx context.Context, runID string) (*models.BacktestResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.results {
		if j.results[i].RunID == runID {
			res := j.results[i]
			return &res, nil
		}
	}
	return nil, fmt.Errorf("%w: run %s", domrepo.ErrNotFound, runID)
}

func (j *memJournal) RecentResults(ctx context.Context, symbol string, limit int) ([]models.BacktestResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastResultsLimit = limit
	var out []models.BacktestResult
	for i := len(j.results) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && j.results[i].Symbol != symbol {
			continue
		}
		out = append(out, j.results[i])
	}
	return out, nil
}

// memPublisher records published messages and can fail on command.
type memPublisher struct {
	mu            sync.Mutex
	bars          int
	decisions     []*models.DecisionRecord
	results       []*models.BacktestResult
	failDecisions bool
	failResults   bool
}

func newMemPublisher() *memPublisher { return &memPublisher{} }

func (p *memPublisher) PublishBar(ctx context.Context, ev *models.BarEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars++
	return nil
}

func (p *memPublisher) PublishBarBatch(ctx context.Context, evs []*models.BarEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars += len(evs)
	return nil
}

func (p *memPublisher) PublishDecision(ctx context.Context, rec *models.DecisionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDecisions {
		return fmt.Errorf("broker down")
	}
	p.decisions = append(p.decisions, rec)
	return nil
}

func (p *memPublisher) PublishResult(ctx context.Context, res *models.BacktestResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failResults {
		return fmt.Errorf("broker down")
	}
	p.results = append(p.results, res)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) resultCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

func (p *memPublisher) barCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bars
}

// memMetrics counts recorder calls by label.
type memMetrics struct {
	mu        sync.Mutex
	bars      map[string]int // backend/symbol
	decisions int
	backtests map[string]int // strategy/status
	errors    map[string]int
	lastClose map[string]float64
}

func newMemMetrics() *memMetrics {
	return &memMetrics{
		bars:      make(map[string]int),
		backtests: make(map[string]int),
		errors:    make(map[string]int),
		lastClose: make(map[string]float64),
	}
}

func (m *memMetrics) RecordBarStored(backend, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[backend+"/"+symbol]++
}

func (m *memMetrics) RecordDecision(symbol, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions++
}

func (m *memMetrics) RecordBacktest(strategy, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backtests[strategy+"/"+status]++
}

func (m *memMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *memMetrics) RecordLastClose(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClose[symbol] = price
}

func (m *memMetrics) RecordLatency(op string, seconds float64) {}

func (m *memMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *memMetrics) backtestCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backtests[key]
}

func (m *memMetrics) barCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bars[key]
}

// stubAdvisor returns a fixed advisory response.
type stubAdvisor struct {
	d     models.Decision
	ok    bool
	err   error
	calls int
}

func (a *stubAdvisor) Advise(ctx context.Context, symbol string, vec models.IndicatorVector) (models.Decision, bool, error) {
	a.calls++
	return a.d, a.ok, a.err
}

// waveBars builds a deterministic oscillating minute series so every
// indicator crosses its thresholds at least once.
func waveBars(n int) []models.Bar {
	epoch := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/5)
		out[i] = models.Bar{
			Timestamp: epoch.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}
