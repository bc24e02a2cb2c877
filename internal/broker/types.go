// Package broker connects runs to their subscribers. A topic exists per run
// id, publishers push events into it and every subscribed hook sees them in
// order. The local broker keeps everything in process, the NATS broker puts
// the same traffic on the wire.
package broker

import (
	"context"
	"fmt"

	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/messages"
)

type Broker[T any] interface {
	Topic(context.Context, string) Topic[T]
}

type Topic[T any] interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook[T]) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// forwardToHook drains a subscription channel into hook callbacks. Delims
// are stream control and never reach the hook.
func forwardToHook[T any](ctx context.Context, ch <-chan events.Event, hook events.Hook[T]) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			dispatchEvent(ctx, event, hook)
		case <-ctx.Done():
			return
		}
	}
}

func dispatchEvent[T any](ctx context.Context, event events.Event, hook events.Hook[T]) {
	switch event := event.(type) {
	case events.Delim:
	case events.Request[messages.UserMessage]:
		hook.OnUserPrompt(ctx, messages.Message[messages.UserMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.AssistantMessage]:
		hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.ToolCallMessage]:
		hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Request[messages.ToolResponse]:
		hook.OnToolCallResponse(ctx, messages.Message[messages.ToolResponse]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.ToolCallMessage]:
		hook.OnToolCallMessage(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.AssistantMessage]:
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Result[T]:
		hook.OnResult(ctx, event.Result)
	case events.Error:
		hook.OnError(ctx, event.Err)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}
