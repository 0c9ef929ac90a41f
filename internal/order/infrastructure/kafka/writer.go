package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter returns a writer for outbox dispatch. Messages carry their own
// topic, so the writer has none.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
