//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/NogaLive/SNIUGB/internal/notification"
	"github.com/NogaLive/SNIUGB/internal/platform/config"
	"github.com/NogaLive/SNIUGB/internal/platform/kafka"
	"github.com/NogaLive/SNIUGB/pkg/testutil/containers"
)

func TestNoticeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := containers.NewRedpandaContainer(t)
	cfg := config.KafkaConfig{
		Brokers:           []string{broker.Broker},
		Topic:             "sniugb.transfer-notices",
		ClientID:          "sniugb-test",
		Partitions:        1,
		ReplicationFactor: 1,
	}

	client, err := kafka.New(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, kafka.EnsureTopic(ctx, client, cfg))
	require.NoError(t, kafka.EnsureTopic(ctx, client, cfg), "second call is a no-op")

	gw := notification.NewKafkaGateway(client, cfg.Topic, nil)
	require.NoError(t, gw.NotifyTransferCreated(ctx, notification.TransferCreated{
		TransferCode:     "TRANS-0A1B2C3D",
		RespondentID:     "40000002",
		AnimalCUIs:       []string{"11500000015"},
		VerificationCode: "123456",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	var got notification.TransferCreated
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, "TRANS-0A1B2C3D", got.TransferCode)
	assert.Equal(t, "40000002", string(records[0].Key))
}
