//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/platform/kafka"
	"docverify/pkg/testutil/containers"
)

func TestProducerPublishesToTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer, err := kafka.NewProducer(broker.Brokers)
	require.NoError(t, err)
	defer producer.Close()

	const topic = "verification.audit.test"
	require.NoError(t, producer.EnsureTopic(ctx, topic, 1, 1))
	// Second call hits TopicAlreadyExists and must still succeed.
	require.NoError(t, producer.EnsureTopic(ctx, topic, 1, 1))

	require.NoError(t, producer.Publish(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte("req-1"),
		Value:   []byte(`{"action":"created"}`),
		Headers: map[string]string{"event_type": "created"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) == 0 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		require.Empty(t, fetches.Errors())
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}
	require.Len(t, got, 1)
	require.Equal(t, "req-1", string(got[0].Key))
	require.Equal(t, "event_type", got[0].Headers[0].Key)
}
