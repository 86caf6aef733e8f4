package repository

import (
	"context"

	"SigForge/internal/domain/models"
	"SigForge/internal/domain/repository"
	pkgkafka "SigForge/pkg/kafka"
)

// KafkaPublisher streams outcomes and audit events to Kafka. Messages
// are keyed by strategy so one strategy's history stays ordered within
// a partition.
type KafkaPublisher struct {
	producer      *pkgkafka.Producer
	outcomesTopic string
	auditTopic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, outcomesTopic, auditTopic string) repository.Publisher {
	return &KafkaPublisher{
		producer:      producer,
		outcomesTopic: outcomesTopic,
		auditTopic:    auditTopic,
	}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, o *models.Outcome) error {
	return p.producer.Publish(ctx, p.outcomesTopic, []byte(o.StrategyID), o)
}

func (p *KafkaPublisher) PublishAudit(ctx context.Context, e *models.AuditEvent) error {
	return p.producer.Publish(ctx, p.auditTopic, []byte(e.Strategy), e)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOutcome(context.Context, *models.Outcome) error  { return nil }
func (NopPublisher) PublishAudit(context.Context, *models.AuditEvent) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
