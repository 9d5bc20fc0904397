package pubsub

import (
	"context"
	"sync"

	"github.com/honeycombio/flowmeter/logger"
)

// LocalPubSub is a PubSub implementation that uses local channels to send
// messages; it does not communicate with any external processes.
type LocalPubSub struct {
	Logger logger.Logger `inject:""`

	topics map[string]chan string
	subs   []*LocalSubscription
	mut    sync.RWMutex
	done   chan struct{}
}

var _ PubSub = (*LocalPubSub)(nil)

type LocalSubscription struct {
	ps    *LocalPubSub
	topic string
	cb    SubscriptionCallback
	done  chan struct{}
	once  sync.Once
}

var _ Subscription = (*LocalSubscription)(nil)

func (ps *LocalPubSub) Start() error {
	if ps.Logger == nil {
		ps.Logger = &logger.NullLogger{}
	}
	ps.topics = make(map[string]chan string)
	ps.subs = make([]*LocalSubscription, 0)
	ps.done = make(chan struct{})
	return nil
}

func (ps *LocalPubSub) Stop() error {
	ps.Close()
	return nil
}

func (ps *LocalPubSub) Close() {
	ps.mut.Lock()
	defer ps.mut.Unlock()
	select {
	case <-ps.done:
		// already closed
	default:
		close(ps.done)
	}
	for _, sub := range ps.subs {
		sub.Close()
	}
	ps.subs = nil
}

// ensureTopic must be called with the write lock held.
func (ps *LocalPubSub) ensureTopic(topic string) chan string {
	if _, ok := ps.topics[topic]; !ok {
		ps.topics[topic] = make(chan string, 100)
		go ps.dispatch(topic, ps.topics[topic])
	}
	return ps.topics[topic]
}

// dispatch fans each message on a topic channel out to that topic's
// subscribers.
func (ps *LocalPubSub) dispatch(topic string, ch chan string) {
	for {
		select {
		case <-ps.done:
			return
		case msg := <-ch:
			ps.mut.RLock()
			subs := make([]*LocalSubscription, 0, len(ps.subs))
			for _, sub := range ps.subs {
				if sub.topic == topic {
					subs = append(subs, sub)
				}
			}
			ps.mut.RUnlock()
			for _, sub := range subs {
				select {
				case <-sub.done:
				default:
					sub.cb(context.Background(), msg)
				}
			}
		}
	}
}

func (ps *LocalPubSub) Publish(ctx context.Context, topic, message string) error {
	ps.mut.Lock()
	ch := ps.ensureTopic(topic)
	ps.mut.Unlock()
	select {
	case ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ps *LocalPubSub) Subscribe(ctx context.Context, topic string, callback SubscriptionCallback) Subscription {
	ps.mut.Lock()
	defer ps.mut.Unlock()
	ps.ensureTopic(topic)
	sub := &LocalSubscription{
		ps:    ps,
		topic: topic,
		cb:    callback,
		done:  make(chan struct{}),
	}
	ps.subs = append(ps.subs, sub)
	return sub
}

func (s *LocalSubscription) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
