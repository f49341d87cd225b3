package kafka

import (
	"context"
	"encoding/json"
	"time"

	"engage-ws/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LeadHandler receives each consumed lead record. The webhook dispatcher
// implements it.
type LeadHandler interface {
	Enqueue(lead domain.LeadCapture)
}

type LeadConsumer struct {
	reader  *kafka.Reader
	handler LeadHandler
	log     *zap.Logger
}

func NewLeadConsumer(brokers []string, groupID, topic string, handler LeadHandler, log *zap.Logger) *LeadConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 100 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
		MaxWait:        100 * time.Millisecond,
	})
	return &LeadConsumer{reader: reader, handler: handler, log: log}
}

// Start consumes until ctx is cancelled. Read errors are logged and the
// loop continues; a malformed record is dropped, not retried.
func (c *LeadConsumer) Start(ctx context.Context) {
	go func() {
		for {
			m, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn("error reading lead event", zap.Error(err))
				continue
			}

			var lead domain.LeadCapture
			if err := json.Unmarshal(m.Value, &lead); err != nil {
				c.log.Warn("dropping malformed lead event",
					zap.ByteString("key", m.Key), zap.Error(err))
				continue
			}

			c.handler.Enqueue(lead)
		}
	}()
}

func (c *LeadConsumer) Close() error {
	return c.reader.Close()
}
