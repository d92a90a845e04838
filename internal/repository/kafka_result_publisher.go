package repository

import (
	"context"

	domrepo "QuantLab/internal/domain/repository"
	pkgkafka "QuantLab/pkg/kafka"
)

// KafkaResultPublisher implements ResultPublisher for Kafka.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) domrepo.ResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

// PublishResult writes result as JSON keyed by the job id.
func (p *KafkaResultPublisher) PublishResult(ctx context.Context, key string, result any) error {
	var headers []pkgkafka.Header
	if id := pkgkafka.TraceIDFrom(ctx); id != "" {
		headers = append(headers, pkgkafka.Header{Key: "trace_id", Value: []byte(id)})
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), result, headers...)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
