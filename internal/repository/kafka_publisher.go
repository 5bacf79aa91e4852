package repository

import (
	"context"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/domain/repository"
	pkgkafka "QuantLab/pkg/kafka"
)

// Topics names the Kafka topics the publisher writes to.
type Topics struct {
	Bars      string
	Decisions string
	Results   string
}

// KafkaPublisher implements Publisher for Kafka. Bars are keyed by
// symbol so one symbol always lands on one partition; results are
// keyed by run id.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topics   Topics
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topics Topics) repository.Publisher {
	return &KafkaPublisher{producer: producer, topics: topics}
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, ev *models.BarEvent) error {
	return p.producer.Publish(ctx, p.topics.Bars, []byte(ev.Symbol), ev)
}

func (p *KafkaPublisher) PublishBarBatch(ctx context.Context, evs []*models.BarEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(ev.Symbol),
			Value: ev,
		}
	}
	return p.producer.PublishBatch(ctx, p.topics.Bars, msgs)
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, rec *models.DecisionRecord) error {
	return p.producer.Publish(ctx, p.topics.Decisions, []byte(rec.Symbol), rec)
}

func (p *KafkaPublisher) PublishResult(ctx context.Context, res *models.BacktestResult) error {
	return p.producer.Publish(ctx, p.topics.Results, []byte(res.RunID), res)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
