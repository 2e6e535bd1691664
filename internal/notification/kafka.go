package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives wallet events when no topic is configured.
const DefaultTopic = "wallet.events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type event struct {
	Kind       string    `json:"kind"`
	WalletID   string    `json:"walletId"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurredAt"`
}

// KafkaNotifier publishes notifications as JSON events keyed by wallet, so
// events of one wallet stay ordered within a partition.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier builds a publisher writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		now: time.Now,
	}
}

// Send publishes one event.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(event{
		Kind:       message.Kind,
		WalletID:   message.Destination,
		Body:       message.Body,
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", message.Kind, err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.Destination),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(message.Kind)},
		},
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", message.Kind, err)
	}
	return nil
}

// Close flushes pending events and releases the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
