package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/mkovacic/sale-notifier/pkg/sale"
)

// Notifier publishes sale summaries to a Kafka topic, one message per sale.
type Notifier struct {
	writer *kafka.Writer
}

// New builds a Kafka notifier for the given brokers and topic. When a
// username and password are set the connection uses SCRAM-SHA-256 over TLS,
// otherwise it is plaintext.
func New(brokers []string, topic, username, password string) (*Notifier, error) {
	dialer := kafka.DefaultDialer
	if username != "" || password != "" {
		mechanism, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, fmt.Errorf("build scram mechanism: %w", err)
		}
		dialer = &kafka.Dialer{
			SASLMechanism: mechanism,
			TLS:           &tls.Config{},
		}
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:   brokers,
		Topic:     topic,
		Dialer:    dialer,
		BatchSize: 1,
	})

	return &Notifier{writer: writer}, nil
}

func (k *Notifier) Name() string {
	return "kafka"
}

// Notify publishes the summary as JSON. The message key is the customer
// email when present so sales by the same customer land on one partition;
// anonymous sales get a random key.
func (k *Notifier) Notify(ctx context.Context, summary sale.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal sale summary: %w", err)
	}

	key := summary.CustomerEmail
	if key == "" {
		key = uuid.New().String()
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (k *Notifier) Close() error {
	return k.writer.Close()
}
