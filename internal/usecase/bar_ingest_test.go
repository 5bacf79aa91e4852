package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"QuantLab/internal/domain/models"
)

func TestIngestHandlesCanonicalEvent(t *testing.T) {
	store := newMemBarStore()
	metrics := newMemMetrics()
	h := NewBarIngestHandler("quantlab.bars", store, metrics)

	if h.Topic() != "quantlab.bars" {
		t.Fatalf("topic: got %q", h.Topic())
	}

	ev := models.BarEvent{
		Symbol: "AAPL",
		Bar: models.Bar{
			Timestamp: time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1200,
		},
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.count("AAPL") != 1 {
		t.Fatalf("stored bars: got %d, want 1", store.count("AAPL"))
	}
}

func TestIngestHandlesCompactFrame(t *testing.T) {
	store := newMemBarStore()
	h := NewBarIngestHandler("quantlab.bars", store, newMemMetrics())
	ctx := context.Background()

	// millisecond epoch
	if err := h.Handle(ctx, []byte(`{"s":"TSLA","t":1714987800000,"o":180,"h":181,"l":179,"c":180.5,"v":5000}`)); err != nil {
		t.Fatalf("handle ms frame: %v", err)
	}
	// second epoch
	if err := h.Handle(ctx, []byte(`{"s":"TSLA","t":1714987860,"o":180,"h":181,"l":179,"c":180.7,"v":4000}`)); err != nil {
		t.Fatalf("handle s frame: %v", err)
	}

	bars, err := store.GetLatestNBars(ctx, "TSLA", 10)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("stored bars: got %d, want 2", len(bars))
	}
	want := time.Unix(1714987800, 0).UTC()
	if !bars[0].Timestamp.Equal(want) {
		t.Fatalf("ms timestamp: got %v, want %v", bars[0].Timestamp, want)
	}
	if !bars[1].Timestamp.Equal(want.Add(time.Minute)) {
		t.Fatalf("s timestamp: got %v, want %v", bars[1].Timestamp, want.Add(time.Minute))
	}
}

func TestIngestRejectsMalformedPayloads(t *testing.T) {
	metrics := newMemMetrics()
	h := NewBarIngestHandler("quantlab.bars", newMemBarStore(), metrics)
	ctx := context.Background()

	for _, payload := range []string{
		`{`,
		`{"o":1,"c":2}`,
		`{"s":"AAPL"}`,
	} {
		if err := h.Handle(ctx, []byte(payload)); err == nil {
			t.Fatalf("payload %q accepted", payload)
		}
	}
	if metrics.errorCount("consumer_unmarshal") != 3 {
		t.Fatalf("unmarshal errors: got %d, want 3", metrics.errorCount("consumer_unmarshal"))
	}
}
