package pubsub

import (
	"context"
	"fmt"

	"github.com/honeycombio/flowmeter/config"
)

// PubSub is an interface for a pubsub system. Both Publish and Subscribe take
// a context so that they can be canceled.
//
// Messages are strings; encode anything richer before publishing. Subscribers
// receive every message published to their topic after the subscription is
// created, but there is no delivery guarantee across process restarts.
type PubSub interface {
	// Publish sends a message to all subscribers of the specified topic.
	Publish(ctx context.Context, topic, message string) error
	// Subscribe returns a Subscription to the specified topic; the callback
	// is invoked for every message received on it.
	Subscribe(ctx context.Context, topic string, callback SubscriptionCallback) Subscription
	// Close shuts down all topics and the pubsub connection.
	Close()

	// Start and Stop allow a PubSub to participate in injection lifecycles.
	Start() error
	Stop() error
}

// SubscriptionCallback is the function signature for a subscription callback.
type SubscriptionCallback func(ctx context.Context, msg string)

type Subscription interface {
	// Close stops the subscription's callback from being invoked again.
	Close()
}

// GetPubSubImplementation returns the pubsub implementation the config asks
// for. LocalPubSub stays within the process; GoRedisPubSub shares messages
// between instances through Redis.
func GetPubSubImplementation(c config.Config) (PubSub, error) {
	switch c.GetPubSubType() {
	case "local":
		return &LocalPubSub{}, nil
	case "redis":
		return &GoRedisPubSub{}, nil
	default:
		return nil, fmt.Errorf("unknown pubsub type %s", c.GetPubSubType())
	}
}
