package eventbus

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// NewKafkaConfig returns a producer config that waits for all in-sync
// replicas and retries transient failures three times.
func NewKafkaConfig(timeout time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	if timeout > 0 {
		cfg.Producer.Timeout = timeout
		cfg.Net.WriteTimeout = timeout
	}
	return cfg
}

// KafkaPublisher writes each event to the Kafka topic named after it, keyed
// by the event key so per-product order is kept within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

func NewKafkaPublisher(brokers []string, timeout time.Duration) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig(timeout))
	if err != nil {
		return nil, errors.Wrap(err, "kafka producer")
	}
	return &KafkaPublisher{producer: producer}, nil
}

// NewKafkaPublisherWith wraps an existing producer.
func NewKafkaPublisherWith(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev model.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: ev.Topic,
		Key:   sarama.StringEncoder(ev.Key),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-id"), Value: []byte(ev.ID)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
		Timestamp: ev.ProducedAt,
	})
	if err != nil {
		return errors.Wrapf(err, "produce %s", ev.Topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
