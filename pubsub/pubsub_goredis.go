package pubsub

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/internal/otelutil"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
)

// GoRedisPubSub is a PubSub implementation that uses Redis as the message
// broker and the go-redis library to interact with Redis.
type GoRedisPubSub struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:"metrics"`
	Tracer  trace.Tracer    `inject:"tracer"`

	client redis.UniversalClient
	subs   []*GoRedisSubscription
	mut    sync.RWMutex
	prefix string
}

var _ PubSub = (*GoRedisPubSub)(nil)

type GoRedisSubscription struct {
	topic  string
	pubsub *redis.PubSub
	cb     SubscriptionCallback
	done   chan struct{}
	once   sync.Once
}

var _ Subscription = (*GoRedisSubscription)(nil)

var goRedisPubSubMetrics = []metrics.Metadata{
	{Name: "redis_pubsub_published", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of messages published to Redis PubSub"},
	{Name: "redis_pubsub_received", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of messages received from Redis PubSub"},
}

// topicWithPrefix returns the topic name with the configured prefix, for
// namespacing topics when several deployments share one Redis.
func (ps *GoRedisPubSub) topicWithPrefix(topic string) string {
	if ps.prefix == "" {
		return topic
	}
	return ps.prefix + ":" + topic
}

func (ps *GoRedisPubSub) Start() error {
	redisCfg := ps.Config.GetRedisPubSubConfig()

	options := &redis.UniversalOptions{
		Addrs:    []string{redisCfg.Host},
		Username: redisCfg.Username,
		Password: redisCfg.Password,
		DB:       redisCfg.Database,
	}
	if redisCfg.UseTLS {
		ps.Logger.Info().WithField("TLSInsecure", redisCfg.UseTLSInsecure).Logf("Using TLS with Redis")
		options.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: redisCfg.UseTLSInsecure,
		}
	}

	ps.prefix = redisCfg.Prefix
	if ps.prefix != "" {
		ps.Logger.Info().WithField("prefix", ps.prefix).Logf("Using Redis pubsub topic prefix for namespacing")
	}

	for _, metric := range goRedisPubSubMetrics {
		ps.Metrics.Register(metric)
	}

	ps.client = redis.NewUniversalClient(options)
	ps.subs = make([]*GoRedisSubscription, 0)
	return nil
}

func (ps *GoRedisPubSub) Stop() error {
	ps.Close()
	return nil
}

func (ps *GoRedisPubSub) Close() {
	ps.mut.Lock()
	for _, sub := range ps.subs {
		sub.Close()
	}
	ps.subs = nil
	ps.mut.Unlock()
	ps.client.Close()
}

func (ps *GoRedisPubSub) Publish(ctx context.Context, topic, message string) error {
	ctx, span := otelutil.StartSpanMulti(ctx, ps.Tracer, "GoRedisPubSub.Publish", map[string]interface{}{
		"topic":   topic,
		"message": message,
	})
	defer span.End()

	if err := ps.client.Publish(ctx, ps.topicWithPrefix(topic), message).Err(); err != nil {
		return err
	}
	ps.Metrics.Count("redis_pubsub_published", 1)
	return nil
}

// Subscribe creates a new Subscription to the given topic, and calls the
// provided callback whenever a message is received on that topic. Note that if
// the same topic is Subscribed to multiple times, this will incur a separate
// connection to Redis for each Subscription.
func (ps *GoRedisPubSub) Subscribe(ctx context.Context, topic string, callback SubscriptionCallback) Subscription {
	ctx, span := otelutil.StartSpanWith(ctx, ps.Tracer, "GoRedisPubSub.Subscribe", "topic", topic)
	defer span.End()

	sub := &GoRedisSubscription{
		topic:  topic,
		pubsub: ps.client.Subscribe(ctx, ps.topicWithPrefix(topic)),
		cb:     callback,
		done:   make(chan struct{}),
	}
	ps.mut.Lock()
	ps.subs = append(ps.subs, sub)
	ps.mut.Unlock()
	go func() {
		receiveRootCtx := context.Background()
		redisch := sub.pubsub.Channel()
		for {
			select {
			case <-sub.done:
				sub.pubsub.Close()
				return
			case msg := <-redisch:
				if msg == nil {
					continue
				}
				receiveCtx, span := otelutil.StartSpanMulti(receiveRootCtx, ps.Tracer, "GoRedisPubSub.Receive", map[string]interface{}{
					"topic":              msg.Channel,
					"message_queue_size": len(redisch),
					"message":            msg.Payload,
				})
				ps.Metrics.Count("redis_pubsub_received", 1)

				go func(cbCtx context.Context, span trace.Span, payload string) {
					defer span.End()
					sub.cb(cbCtx, payload)
				}(receiveCtx, span, msg.Payload)
			}
		}
	}()
	return sub
}

func (s *GoRedisSubscription) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
