package kafka

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

func TestMain(m *testing.M) {
	SetConsumerMetricsRegisterer(prometheus.NewRegistry())
	os.Exit(m.Run())
}

type topicHandler struct {
	topic string
	calls int
}

func (h *topicHandler) Topic() string { return h.topic }

func (h *topicHandler) Handle(context.Context, []byte) error {
	h.calls++
	return nil
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if c.cfg.GroupID != "default" {
		t.Fatalf("group id: got %q, want %q", c.cfg.GroupID, "default")
	}
	if c.cfg.WorkerCount != 1 || c.cfg.BufferSize != 10 || c.cfg.RetryMax != 3 {
		t.Fatalf("defaults: got workers=%d buffer=%d retry=%d",
			c.cfg.WorkerCount, c.cfg.BufferSize, c.cfg.RetryMax)
	}
	if c.cfg.AutoOffsetReset != "earliest" {
		t.Fatalf("offset reset: got %q, want earliest", c.cfg.AutoOffsetReset)
	}
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	first := &topicHandler{topic: "bars"}
	second := &topicHandler{topic: "bars"}
	c.RegisterHandler(first)
	c.RegisterHandler(second)

	if len(c.handlers) != 1 {
		t.Fatalf("handlers: got %d, want 1", len(c.handlers))
	}
	if c.handlers["bars"] != MessageHandler(first) {
		t.Fatal("duplicate registration replaced the original handler")
	}
}

func TestStartOffsetMapping(t *testing.T) {
	if got := startOffset("latest"); got != kafka.LastOffset {
		t.Fatalf("latest: got %d, want %d", got, kafka.LastOffset)
	}
	if got := startOffset("earliest"); got != kafka.FirstOffset {
		t.Fatalf("earliest: got %d, want %d", got, kafka.FirstOffset)
	}
	if got := startOffset(""); got != kafka.FirstOffset {
		t.Fatalf("empty: got %d, want %d", got, kafka.FirstOffset)
	}
}

func TestJitteredBackoffBounds(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		exp := min << uint(attempt-1)
		if exp <= 0 || exp > max {
			exp = max
		}
		for i := 0; i < 25; i++ {
			d := jitteredBackoff(min, max, attempt)
			if d <= 0 || d > exp {
				t.Fatalf("attempt %d: got %v, want in (0, %v]", attempt, d, exp)
			}
			if 2*d < exp {
				t.Fatalf("attempt %d: got %v, jitter exceeded half of %v", attempt, d, exp)
			}
		}
	}
}

func TestJitteredBackoffDegenerateInputs(t *testing.T) {
	// a 1ns window leaves no room for jitter and must not panic
	if d := jitteredBackoff(time.Nanosecond, time.Nanosecond, 1); d != time.Nanosecond {
		t.Fatalf("tiny window: got %v, want 1ns", d)
	}
	// an attempt count that overflows the shift falls back to the cap
	if d := jitteredBackoff(50*time.Millisecond, 2*time.Second, 200); d <= 0 || d > 2*time.Second {
		t.Fatalf("overflowing attempt: got %v, want in (0, 2s]", d)
	}
	// zero min picks the default floor instead of panicking
	if d := jitteredBackoff(0, 0, 1); d <= 0 {
		t.Fatalf("zero min: got %v, want positive", d)
	}
}

func TestPartitionLockIdentity(t *testing.T) {
	c := &Consumer{partLocks: make(map[string]map[int]*sync.Mutex)}

	l1 := c.partitionLock("bars", 0)
	l2 := c.partitionLock("bars", 0)
	if l1 != l2 {
		t.Fatal("same topic and partition should share one lock")
	}
	if l3 := c.partitionLock("bars", 1); l3 == l1 {
		t.Fatal("different partitions should not share a lock")
	}
	if l4 := c.partitionLock("decisions", 0); l4 == l1 {
		t.Fatal("different topics should not share a lock")
	}
}
