package eventbus

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		env, err := Decode(val)
		if err != nil {
			return err
		}
		if env.ID != "ev-1" || env.Key != "p1" {
			return sarama.ErrInvalidMessage
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWith(producer)
	require.NoError(t, p.Publish(context.Background(), created()))
	err := p.Publish(context.Background(), created())
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaConfig(t *testing.T) {
	cfg := NewKafkaConfig(0)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.True(t, cfg.Producer.Return.Successes)
	require.NoError(t, cfg.Validate())
}

func TestDecodeRejectsIncompleteEnvelope(t *testing.T) {
	_, err := Decode([]byte(`{"id":"1","topic":"catalog.product.created"}`))
	require.ErrorIs(t, err, ErrMalformed)
}
