//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	id "subvault/pkg/domain"
	"subvault/pkg/platform/events"
)

func TestKafkaPublisher_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := redpanda.Run(ctx, "redpandadata/redpanda:v24.1.2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	const topic = "subvault.registry.events.test"
	pub, err := New([]string{broker}, topic)
	require.NoError(t, err)

	accountID := id.NewAccountID()
	emitted := events.Event{
		Kind:      events.KindPurchased,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		AccountID: accountID,
		Subscriber: "buyer-1",
	}
	require.NoError(t, pub.Emit(ctx, emitted))
	require.NoError(t, pub.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, accountID.String(), string(records[0].Key))

	var got events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, events.KindPurchased, got.Kind)
	assert.Equal(t, accountID, got.AccountID)
	assert.Equal(t, id.Principal("buyer-1"), got.Subscriber)
}
