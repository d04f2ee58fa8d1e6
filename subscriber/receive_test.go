package subscriber

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanwyyy/contractsync/events"
	"github.com/zanwyyy/contractsync/logger"
	"github.com/zanwyyy/contractsync/model"
	pubsub2 "github.com/zanwyyy/contractsync/pubsub"
	"github.com/zanwyyy/contractsync/provider"
)

func TestReceiveAcksMalformedAndNacksFailedRefresh(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	ctx := context.Background()
	ps, err := pubsub2.NewPubSubClient(ctx, "contractsync-test", logger.Nop())
	require.NoError(t, err)
	defer ps.Close()

	topic, err := ps.Client.CreateTopic(ctx, "contracts")
	require.NoError(t, err)
	defer topic.Stop()
	sub, err := ps.Client.CreateSubscription(ctx, "contracts-sub", pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	require.NoError(t, err)

	sim := provider.NewMemory()
	h, a := newTestHandler(t, sim)
	_, err = a.AddContract(ctx, "healthy", "", []byte{0x01})
	require.NoError(t, err)
	_, err = a.AddContract(ctx, "broken", "", []byte{0x02})
	require.NoError(t, err)
	sim.Fail(model.ContractAddress([]byte{0x02}, "bchtest"), errors.New("node down"))

	publish := func(msgType, body string) string {
		id, err := topic.Publish(ctx, &pubsub.Message{
			Data:       []byte(body),
			Attributes: map[string]string{"type": msgType},
		}).Get(ctx)
		require.NoError(t, err)
		return id
	}
	okID := publish(events.TopicContractChanged, `{"name":"healthy"}`)
	badJSON := publish(events.TopicContractChanged, `{"name":`)
	unknown := publish("tx.create", `{}`)
	failing := publish(events.TopicContractChanged, `{"name":"broken"}`)

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- Receive(rctx, sub, h) }()

	acked := func(id string) bool {
		m := srv.Message(id)
		return m != nil && m.Acks > 0
	}
	assert.Eventually(t, func() bool {
		return acked(okID) && acked(badJSON) && acked(unknown)
	}, 10*time.Second, 20*time.Millisecond)

	// a nacked message comes back
	assert.Eventually(t, func() bool {
		m := srv.Message(failing)
		return m != nil && m.Deliveries >= 2
	}, 10*time.Second, 20*time.Millisecond)
	assert.Zero(t, srv.Message(failing).Acks)

	cancel()
	require.NoError(t, <-done)
}
