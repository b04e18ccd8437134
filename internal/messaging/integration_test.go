//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/testutil"
)

func TestProducerConsumerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := testutil.SetupKafka(ctx, t)
	topic := "order-events-test"

	producer := NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	// The first write may race topic auto-creation.
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, "o1", namedEvent{OrderID: "o1"}) == nil
	}, 30*time.Second, time.Second)

	// A raw message that is not an order event must not wedge the consumer.
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic}
	require.NoError(t, w.WriteMessages(ctx, kafka.Message{Key: []byte("bad"), Value: []byte("{")}))
	_ = w.Close()
	require.NoError(t, producer.Publish(ctx, "o2", namedEvent{OrderID: "o2"}))

	consumer := NewConsumer(brokers, topic, "test-group", slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	var got []Delivery
	err := consumer.Consume(consumeCtx, func(ctx context.Context, d Delivery) error {
		var e namedEvent
		if err := json.Unmarshal(d.Payload, &e); err != nil {
			return errors.Join(ErrSkip, err)
		}
		got = append(got, d)
		if len(got) == 2 {
			stop()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].Key)
	assert.Equal(t, "order.created", got[0].EventType)
	assert.Equal(t, "o2", got[1].Key)
}
