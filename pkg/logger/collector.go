package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries to a topic. The Kafka
// producer satisfies this.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes log aggregation: identical lines are folded into
// one entry with a count, and batches flush on a timer or once the number
// of distinct entries crosses CountThreshold.
type CollectionConfig struct {
	TimeInterval   time.Duration
	CountThreshold int
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is the wire form of one deduplicated log line.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated log lines and publishes them in batches. A
// single flusher goroutine owns publishing, so bursts cannot fan out into
// unbounded sends.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	pending map[string]*AggregatedLogEntry

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	c := &LogCollector{
		config:  config,
		pending: make(map[string]*AggregatedLogEntry),
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

// AddLog records one line. Lines with the same level, message, fields and
// caller share an entry whose count grows instead.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	if entry, ok := c.pending[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.pending[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	full := len(c.pending) >= c.config.CountThreshold
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close flushes whatever is pending and stops the flusher.
func (c *LogCollector) Close() {
	close(c.quit)
	<-c.done
}

func (c *LogCollector) flushLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.quit:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, entry := range c.pending {
		batch = append(batch, *entry)
	}
	c.pending = make(map[string]*AggregatedLogEntry)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		fmt.Fprintf(os.Stderr, "log collector: publish aggregated batch: %v\n", err)
	}
}

// fingerprint keys the dedupe map. encoding/json sorts map keys, so the
// fields portion is stable across calls.
func fingerprint(level, message string, fields map[string]interface{}, caller string) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(0x1f)
	b.WriteString(message)
	b.WriteByte(0x1f)
	b.WriteString(caller)
	if len(fields) > 0 {
		b.WriteByte(0x1f)
		if raw, err := json.Marshal(fields); err == nil {
			b.Write(raw)
		}
	}
	return b.String()
}
