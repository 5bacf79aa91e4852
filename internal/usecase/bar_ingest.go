package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	pkgkafka "QuantLab/pkg/kafka"
)

// BarIngestHandler consumes bar events from Kafka and writes them to the
// bar store.
type BarIngestHandler struct {
	topic   string
	store   domrepo.BarStore
	metrics domrepo.Metrics
}

func NewBarIngestHandler(topic string, store domrepo.BarStore, metrics domrepo.Metrics) *BarIngestHandler {
	return &BarIngestHandler{topic: topic, store: store, metrics: metrics}
}

func (h *BarIngestHandler) Topic() string { return h.topic }

// Handle accepts the canonical BarEvent JSON and, as a fallback, the
// compact feed frame {s, t, o, h, l, c, v} with an epoch timestamp.
func (h *BarIngestHandler) Handle(ctx context.Context, b []byte) error {
	ev, err := decodeBarEvent(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ev.Timestamp).Seconds())

	start := time.Now()
	err = h.store.Store(ctx, ev)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}

	h.metrics.RecordBarStored("clickhouse", ev.Symbol)
	return nil
}

func decodeBarEvent(b []byte) (*models.BarEvent, error) {
	var ev models.BarEvent
	if err := json.Unmarshal(b, &ev); err == nil && ev.Symbol != "" && !ev.Timestamp.IsZero() {
		return &ev, nil
	}

	var m struct {
		Symbol string  `json:"s"`
		T      int64   `json:"t"`
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Symbol == "" || m.T == 0 {
		return nil, fmt.Errorf("bar event missing symbol or timestamp")
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}

	return &models.BarEvent{
		Symbol: m.Symbol,
		Bar: models.Bar{
			Timestamp: time.Unix(m.T, 0).UTC(),
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		},
	}, nil
}

var _ pkgkafka.MessageHandler = (*BarIngestHandler)(nil)
