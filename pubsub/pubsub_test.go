package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/config"
)

func TestGetPubSubImplementation(t *testing.T) {
	ps, err := GetPubSubImplementation(&config.MockConfig{PubSubType: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalPubSub{}, ps)

	ps, err = GetPubSubImplementation(&config.MockConfig{PubSubType: "redis"})
	require.NoError(t, err)
	assert.IsType(t, &GoRedisPubSub{}, ps)

	_, err = GetPubSubImplementation(&config.MockConfig{PubSubType: "smoke-signals"})
	assert.Error(t, err)
}

func TestLocalPubSubDelivery(t *testing.T) {
	ps := &LocalPubSub{}
	require.NoError(t, ps.Start())
	defer ps.Stop()

	var mut sync.Mutex
	var received []string
	ps.Subscribe(context.Background(), "reports", func(ctx context.Context, msg string) {
		mut.Lock()
		received = append(received, msg)
		mut.Unlock()
	})

	require.NoError(t, ps.Publish(context.Background(), "reports", "one"))
	require.NoError(t, ps.Publish(context.Background(), "reports", "two"))

	require.Eventually(t, func() bool {
		mut.Lock()
		defer mut.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mut.Lock()
	assert.Equal(t, []string{"one", "two"}, received)
	mut.Unlock()
}

func TestLocalPubSubTopicsAreIndependent(t *testing.T) {
	ps := &LocalPubSub{}
	require.NoError(t, ps.Start())
	defer ps.Stop()

	var mut sync.Mutex
	counts := map[string]int{}
	subscribe := func(topic string) {
		ps.Subscribe(context.Background(), topic, func(ctx context.Context, msg string) {
			mut.Lock()
			counts[topic]++
			mut.Unlock()
		})
	}
	subscribe("a")
	subscribe("b")

	require.NoError(t, ps.Publish(context.Background(), "a", "hello"))

	require.Eventually(t, func() bool {
		mut.Lock()
		defer mut.Unlock()
		return counts["a"] == 1
	}, time.Second, 5*time.Millisecond)

	mut.Lock()
	assert.Zero(t, counts["b"])
	mut.Unlock()
}

func TestLocalPubSubClosedSubscriptionStopsReceiving(t *testing.T) {
	ps := &LocalPubSub{}
	require.NoError(t, ps.Start())
	defer ps.Stop()

	var mut sync.Mutex
	count := 0
	sub := ps.Subscribe(context.Background(), "reports", func(ctx context.Context, msg string) {
		mut.Lock()
		count++
		mut.Unlock()
	})

	require.NoError(t, ps.Publish(context.Background(), "reports", "before"))
	require.Eventually(t, func() bool {
		mut.Lock()
		defer mut.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	sub.Close()
	require.NoError(t, ps.Publish(context.Background(), "reports", "after"))

	// give the dispatcher a chance to misbehave
	time.Sleep(50 * time.Millisecond)
	mut.Lock()
	assert.Equal(t, 1, count)
	mut.Unlock()
}
