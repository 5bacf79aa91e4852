package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message pairs an optional partition key with a payload for batch
// publishing. Payloads that are not []byte or string are JSON-encoded.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer wraps one kafka-go writer shared across topics. Each publish
// names its topic, so a single producer serves bars, decisions, results
// and log batches alike.
type Producer struct {
	writer      *kafka.Writer
	compression string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}

	writerMetricsOnce.Do(registerWriterMetrics)

	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compressionCodec(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
		compression: cfg.Compression,
	}, nil
}

// Publish sends one keyed message to the topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}
	return p.write(ctx, topic, []kafka.Message{{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	}}, int64(len(payload)))
}

// PublishMessage sends a keyless message, letting the balancer pick the
// partition.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch sends the messages in one writer call so they share a
// batch where sizes allow.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(messages))
	var payloadBytes int64
	now := time.Now()
	for _, m := range messages {
		payload, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: payload,
			Time:  now,
		})
		payloadBytes += int64(len(payload))
	}
	return p.write(ctx, topic, msgs, payloadBytes)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Producer) write(ctx context.Context, topic string, msgs []kafka.Message, payloadBytes int64) error {
	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)

	result := "ok"
	if err != nil {
		result = "error"
		writerErrors.WithLabelValues(topic).Inc()
	}
	writerMessages.WithLabelValues(topic, p.compression, result).Add(float64(len(msgs)))
	writerBytes.WithLabelValues(topic, p.compression).Add(float64(payloadBytes))
	writerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	return err
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return raw, nil
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	writerMetricsOnce sync.Once
	writerMessages    *prometheus.CounterVec
	writerErrors      *prometheus.CounterVec
	writerBytes       *prometheus.CounterVec
	writerLatency     *prometheus.HistogramVec
)

func registerWriterMetrics() {
	writerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_kafka_producer_messages_total",
			Help: "Messages published, by topic and result",
		},
		[]string{"topic", "compression", "result"},
	)
	writerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_kafka_producer_errors_total",
			Help: "Publish errors by topic",
		},
		[]string{"topic"},
	)
	writerBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_kafka_producer_bytes_total",
			Help: "Uncompressed payload bytes published",
		},
		[]string{"topic", "compression"},
	)
	writerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantlab_kafka_producer_publish_seconds",
			Help:    "WriteMessages latency by topic",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
}
