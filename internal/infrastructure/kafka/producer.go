package kafka

import (
	"context"
	"encoding/json"
	"time"

	"engage-ws/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LeadProducer publishes lead.created records for downstream consumers,
// including this process's own webhook dispatcher.
type LeadProducer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewLeadProducer(brokers []string, topic string, log *zap.Logger) *LeadProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		// Lead volume is low; send immediately rather than batching.
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: 1,
		Async:        false,
	}
	return &LeadProducer{writer: writer, log: log}
}

// PublishLead emits one lead record, keyed by lead id.
func (p *LeadProducer) PublishLead(ctx context.Context, lead *domain.LeadCapture) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(lead.ID),
		Value: data,
	})
	if err != nil {
		p.log.Error("failed to publish lead event", zap.String("leadId", lead.ID), zap.Error(err))
		return err
	}

	p.log.Debug("lead event published", zap.String("leadId", lead.ID))
	return nil
}

func (p *LeadProducer) Close() error {
	return p.writer.Close()
}
