package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

type localBroker[T any] struct {
	topics                *haxmap.Map[string, *localTopic[T]]
	slowSubscriberTimeout time.Duration
}

// Local returns an in-process broker. Subscribers that fall behind the
// publisher for longer than the slow subscriber timeout get dropped.
func Local[T any]() Broker[T] {
	return &localBroker[T]{
		topics:                haxmap.New[string, *localTopic[T]](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

func (b *localBroker[T]) Topic(ctx context.Context, id string) Topic[T] {
	topic, _ := b.topics.GetOrCompute(id, func() *localTopic[T] {
		return &localTopic[T]{
			id:                    id,
			subscriptions:         haxmap.New[string, *localSubscription[T]](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

type localTopic[T any] struct {
	id                    string
	subscriptions         *haxmap.Map[string, *localSubscription[T]]
	slowSubscriberTimeout time.Duration
}

func (t *localTopic[T]) Publish(ctx context.Context, event events.Event) error {
	t.subscriptions.ForEach(func(id string, sub *localSubscription[T]) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-time.After(t.slowSubscriberTimeout):
			// channel stayed full, the subscriber is not keeping up
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (t *localTopic[T]) Subscribe(ctx context.Context, hook events.Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	id := uuidx.NewString()
	sub := &localSubscription[T]{
		id:      id,
		ctx:     ctx,
		channel: make(chan events.Event, 50),
		onClose: func() { t.subscriptions.Del(id) },
	}
	t.subscriptions.Set(id, sub)
	go forwardToHook(ctx, sub.channel, hook)
	return sub, nil
}

type localSubscription[T any] struct {
	id        string
	ctx       context.Context
	channel   chan events.Event
	closeOnce sync.Once
	onClose   func()
}

func (s *localSubscription[T]) ID() string {
	return s.id
}

func (s *localSubscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.channel)
	})
}
