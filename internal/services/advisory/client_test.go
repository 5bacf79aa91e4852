package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"QuantLab/internal/domain/models"
	"QuantLab/pkg/config"
)

func advisorFor(t *testing.T, url string) *HTTPAdvisor {
	t.Helper()
	cfg := &config.Config{}
	cfg.Advisor.Enabled = true
	cfg.Advisor.URL = url
	cfg.Advisor.Timeout = 2 * time.Second
	cfg.Advisor.Retries = 2
	a, ok := NewHTTPAdvisor(cfg).(*HTTPAdvisor)
	if !ok {
		t.Fatalf("expected HTTPAdvisor for enabled config")
	}
	return a
}

func stubService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAdviseDecodesDecision(t *testing.T) {
	var gotReq adviseRequest
	srv := stubService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/advise" {
			t.Errorf("path: got %s, want /advise", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(adviseResponse{Action: "BUY", Confidence: 7.5})
	})

	vec := models.IndicatorVector{models.IndRSI: 25, models.IndMACD: 0.5}
	d, ok, err := advisorFor(t, srv.URL).Advise(context.Background(), "AAPL", vec)
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if !ok {
		t.Fatalf("expected a vote")
	}
	if d.Action != models.ActionBuy || d.Confidence != 7.5 {
		t.Fatalf("got %+v, want BUY 7.5", d)
	}
	if gotReq.Symbol != "AAPL" || gotReq.Indicators[models.IndRSI] != 25 {
		t.Fatalf("request payload: %+v", gotReq)
	}
}

func TestAdviseAbstention(t *testing.T) {
	srv := stubService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adviseResponse{Abstain: true})
	})

	_, ok, err := advisorFor(t, srv.URL).Advise(context.Background(), "AAPL", models.IndicatorVector{})
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if ok {
		t.Fatalf("expected abstention")
	}
}

func TestAdviseNormalizesAndClamps(t *testing.T) {
	srv := stubService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adviseResponse{Action: "sell", Confidence: 15})
	})

	d, ok, err := advisorFor(t, srv.URL).Advise(context.Background(), "AAPL", models.IndicatorVector{})
	if err != nil || !ok {
		t.Fatalf("advise: ok=%v err=%v", ok, err)
	}
	if d.Action != models.ActionSell || d.Confidence != 10 {
		t.Fatalf("got %+v, want SELL clamped to 10", d)
	}
}

func TestAdviseRejectsUnknownAction(t *testing.T) {
	srv := stubService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adviseResponse{Action: "SHORT", Confidence: 9})
	})

	_, ok, err := advisorFor(t, srv.URL).Advise(context.Background(), "AAPL", models.IndicatorVector{})
	if err == nil {
		t.Fatalf("expected error for unknown action")
	}
	if ok {
		t.Fatalf("unknown action must not vote")
	}
}

func TestAdviseRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := stubService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(adviseResponse{Action: "HOLD", Confidence: 5})
	})

	d, ok, err := advisorFor(t, srv.URL).Advise(context.Background(), "AAPL", models.IndicatorVector{})
	if err != nil || !ok {
		t.Fatalf("advise after retry: ok=%v err=%v", ok, err)
	}
	if d.Action != models.ActionHold {
		t.Fatalf("got %s, want HOLD", d.Action)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls: got %d, want 2", got)
	}
}

func TestDisabledAdvisorAbstains(t *testing.T) {
	cfg := &config.Config{}
	a := NewHTTPAdvisor(cfg)

	d, ok, err := a.Advise(context.Background(), "AAPL", models.IndicatorVector{models.IndRSI: 20})
	if err != nil {
		t.Fatalf("disabled advise: %v", err)
	}
	if ok {
		t.Fatalf("disabled advisor must abstain")
	}
	if d.Action != models.ActionHold {
		t.Fatalf("got %s, want HOLD", d.Action)
	}
}
