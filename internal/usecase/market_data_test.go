package usecase

import (
	"context"
	"testing"
	"time"
)

func TestGetBarsRequiresSymbol(t *testing.T) {
	uc := NewMarketDataUseCase(newMemBarStore())
	if _, err := uc.GetBars(context.Background(), GetBarsParams{}); err == nil {
		t.Fatal("empty symbol accepted")
	}
}

func TestGetBarsAlignsWindowToMinutes(t *testing.T) {
	store := newMemBarStore()
	store.seed("AAPL", waveBars(10)) // 09:30 .. 09:39
	uc := NewMarketDataUseCase(store)

	res, err := uc.GetBars(context.Background(), GetBarsParams{
		Symbol: "AAPL",
		From:   time.Date(2024, 5, 6, 9, 32, 30, 0, time.UTC),
		To:     time.Date(2024, 5, 6, 9, 35, 45, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if !res.From.Equal(time.Date(2024, 5, 6, 9, 32, 0, 0, time.UTC)) {
		t.Fatalf("aligned from: got %v", res.From)
	}
	if !res.To.Equal(time.Date(2024, 5, 6, 9, 35, 0, 0, time.UTC)) {
		t.Fatalf("aligned to: got %v", res.To)
	}
	if res.Count != 4 || len(res.Bars) != 4 {
		t.Fatalf("bars in window: got %d, want 4", res.Count)
	}
}

func TestGetBarsDefaultsToOpenEndedRange(t *testing.T) {
	store := newMemBarStore()
	store.seed("AAPL", waveBars(10))
	uc := NewMarketDataUseCase(store)

	res, err := uc.GetBars(context.Background(), GetBarsParams{Symbol: "AAPL", Limit: -5})
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if res.Count != 10 {
		t.Fatalf("bars with zero range: got %d, want 10", res.Count)
	}
}

func TestGetBarsRejectsInvertedRange(t *testing.T) {
	uc := NewMarketDataUseCase(newMemBarStore())
	_, err := uc.GetBars(context.Background(), GetBarsParams{
		Symbol: "AAPL",
		From:   time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatal("inverted range accepted")
	}
}

func TestGetBarsHonorsLimit(t *testing.T) {
	store := newMemBarStore()
	store.seed("AAPL", waveBars(10))
	uc := NewMarketDataUseCase(store)

	res, err := uc.GetBars(context.Background(), GetBarsParams{Symbol: "AAPL", Limit: 3})
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if res.Count != 3 {
		t.Fatalf("limited bars: got %d, want 3", res.Count)
	}
}
