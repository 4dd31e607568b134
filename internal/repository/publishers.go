package repository

import (
	"context"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/domain/repository"
	pkgkafka "SpinTrack/pkg/kafka"
)

// producer is the part of pkg/kafka.Producer the publishers use.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSpinPublisher writes recorded spins keyed by source so one source
// stays on one partition.
type KafkaSpinPublisher struct {
	producer producer
	topic    string
}

func NewKafkaSpinPublisher(p producer, topic string) *KafkaSpinPublisher {
	return &KafkaSpinPublisher{producer: p, topic: topic}
}

var _ repository.SpinPublisher = (*KafkaSpinPublisher)(nil)

func (p *KafkaSpinPublisher) Publish(ctx context.Context, s *models.Spin) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Source), s)
}

func (p *KafkaSpinPublisher) PublishBatch(ctx context.Context, spins []*models.Spin) error {
	if len(spins) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(spins))
	for i, s := range spins {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Source), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close leaves the shared producer open; the DI cleanup closes it.
func (p *KafkaSpinPublisher) Close() error { return nil }

// KafkaAlertPublisher writes alert events keyed by strategy id.
type KafkaAlertPublisher struct {
	producer producer
	topic    string
}

func NewKafkaAlertPublisher(p producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: p, topic: topic}
}

var _ repository.AlertPublisher = (*KafkaAlertPublisher)(nil)

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, ev models.AlertEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.StrategyID), ev)
}
