package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.Type != OrderCreated || event.OrderNumber != "ORD-1-ABCDEF" {
			return errors.New("unexpected event payload")
		}
		if event.OccurredAt.IsZero() {
			return errors.New("occurredAt not set")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "dentalshop.orders")
	err := publisher.Publish(context.Background(), OrderEvent{
		Type:        OrderCreated,
		OrderID:     1,
		OrderNumber: "ORD-1-ABCDEF",
		Status:      "pending",
		Total:       decimal.RequireFromString("215.00"),
	})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisherError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "dentalshop.orders")
	err := publisher.Publish(context.Background(), OrderEvent{Type: OrderStatusChanged, OrderNumber: "ORD-2-ABCDEF"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestNewWithoutBrokers(t *testing.T) {
	publisher, err := New(nil, "topic", "client")
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, publisher)
	assert.NoError(t, publisher.Publish(context.Background(), OrderEvent{Type: OrderCreated}))
	assert.NoError(t, publisher.Close())
}

func TestNewSaramaConfig(t *testing.T) {
	config := NewSaramaConfig("dentalshop")
	assert.Equal(t, sarama.WaitForAll, config.Producer.RequiredAcks)
	assert.True(t, config.Producer.Return.Successes)
	assert.NoError(t, config.Validate())
}
