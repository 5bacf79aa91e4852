package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"QuantLab/internal/domain/models"
)

func barEvent(symbol string, i int) *models.BarEvent {
	return &models.BarEvent{
		Symbol: symbol,
		Bar: models.Bar{
			Timestamp: time.Date(2024, 5, 6, 9, 30+i, 0, 0, time.UTC),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		},
	}
}

func TestProcessRoutesToKafka(t *testing.T) {
	pub := newMemPublisher()
	store := newMemBarStore()
	metrics := newMemMetrics()
	p := NewBarProcessor(pub, store, metrics, "kafka", 100, time.Second)

	if err := p.Process(context.Background(), barEvent("AAPL", 0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if pub.barCount() != 1 {
		t.Fatalf("published bars: got %d, want 1", pub.barCount())
	}
	if store.count("AAPL") != 0 {
		t.Fatalf("store should stay untouched on kafka backend, got %d bars", store.count("AAPL"))
	}
	if metrics.barCount("kafka/AAPL") != 1 {
		t.Fatalf("bar metric: got %d, want 1", metrics.barCount("kafka/AAPL"))
	}
}

func TestProcessRoutesToClickHouse(t *testing.T) {
	pub := newMemPublisher()
	store := newMemBarStore()
	metrics := newMemMetrics()
	p := NewBarProcessor(pub, store, metrics, "clickhouse", 100, time.Second)

	if err := p.Process(context.Background(), barEvent("TSLA", 0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.count("TSLA") != 1 {
		t.Fatalf("stored bars: got %d, want 1", store.count("TSLA"))
	}
	if pub.barCount() != 0 {
		t.Fatalf("publisher should stay untouched on clickhouse backend, got %d bars", pub.barCount())
	}
	if metrics.barCount("clickhouse/TSLA") != 1 {
		t.Fatalf("bar metric: got %d, want 1", metrics.barCount("clickhouse/TSLA"))
	}
}

func TestProcessRejectsUnknownBackend(t *testing.T) {
	metrics := newMemMetrics()
	p := NewBarProcessor(newMemPublisher(), newMemBarStore(), metrics, "postgres", 100, time.Second)

	err := p.Process(context.Background(), barEvent("AAPL", 0))
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("error: got %v, want unknown backend", err)
	}
	if metrics.errorCount("process") != 1 {
		t.Fatalf("process errors: got %d, want 1", metrics.errorCount("process"))
	}
}

func TestProcessRejectsNilEvent(t *testing.T) {
	p := NewBarProcessor(newMemPublisher(), newMemBarStore(), newMemMetrics(), "kafka", 100, time.Second)
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatal("nil event accepted")
	}
}

func TestProcessBatchRoutesAllEvents(t *testing.T) {
	store := newMemBarStore()
	metrics := newMemMetrics()
	p := NewBarProcessor(newMemPublisher(), store, metrics, "clickhouse", 100, time.Second)

	evs := []*models.BarEvent{barEvent("AAPL", 0), barEvent("AAPL", 1), barEvent("MSFT", 0)}
	if err := p.ProcessBatch(context.Background(), evs); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if store.count("AAPL") != 2 || store.count("MSFT") != 1 {
		t.Fatalf("stored bars: got AAPL=%d MSFT=%d, want 2 and 1", store.count("AAPL"), store.count("MSFT"))
	}
	if metrics.barCount("clickhouse/AAPL") != 2 {
		t.Fatalf("bar metric: got %d, want 2", metrics.barCount("clickhouse/AAPL"))
	}

	// empty batch is a no-op
	if err := p.ProcessBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}
