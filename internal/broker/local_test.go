package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHook struct {
	mu       sync.Mutex
	prompts  []messages.Message[messages.UserMessage]
	messages []messages.Message[messages.AssistantMessage]
	results  []string
	errs     []error
}

func (h *captureHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, msg)
}

func (h *captureHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (h *captureHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}

func (h *captureHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *captureHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {
}

func (h *captureHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse]) {}

func (h *captureHook) OnResult(_ context.Context, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *captureHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *captureHook) counts() (int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.prompts), len(h.messages), len(h.results), len(h.errs)
}

func TestLocalBrokerDeliversToHook(t *testing.T) {
	ctx := context.Background()
	b := Local[string]()
	topic := b.Topic(ctx, "run-1")

	hook := &captureHook{}
	sub, err := topic.Subscribe(ctx, hook)
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID())
	defer sub.Unsubscribe()

	runID := uuid.New()
	turnID := uuid.New()

	require.NoError(t, topic.Publish(ctx, events.Request[messages.UserMessage]{
		RunID:   runID,
		TurnID:  turnID,
		Message: messages.UserMessage{Content: messages.ContentOrParts{Content: "hi"}},
		Sender:  "user",
	}))
	require.NoError(t, topic.Publish(ctx, events.Delim{RunID: runID, TurnID: turnID, Delim: "start"}))
	require.NoError(t, topic.Publish(ctx, events.Response[messages.AssistantMessage]{
		RunID:    runID,
		TurnID:   turnID,
		Response: messages.AssistantMessage{Content: messages.AssistantContentOrParts{Content: "hello"}},
		Sender:   "writer",
	}))
	require.NoError(t, topic.Publish(ctx, events.Result[string]{RunID: runID, TurnID: turnID, Result: "done"}))
	require.NoError(t, topic.Publish(ctx, events.Error{RunID: runID, TurnID: turnID, Err: errors.New("oops")}))

	require.Eventually(t, func() bool {
		prompts, msgs, results, errs := hook.counts()
		return prompts == 1 && msgs == 1 && results == 1 && errs == 1
	}, time.Second, 10*time.Millisecond)

	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Equal(t, "hi", hook.prompts[0].Payload.Content.Content)
	assert.Equal(t, "user", hook.prompts[0].Sender)
	assert.Equal(t, runID, hook.prompts[0].RunID)
	assert.Equal(t, "hello", hook.messages[0].Payload.Content.Content)
	assert.Equal(t, "done", hook.results[0])
	assert.EqualError(t, hook.errs[0], "oops")
}

func TestLocalBrokerSameTopicInstance(t *testing.T) {
	ctx := context.Background()
	b := Local[string]()
	assert.Same(t, b.Topic(ctx, "run-1"), b.Topic(ctx, "run-1"))
	assert.NotSame(t, b.Topic(ctx, "run-1"), b.Topic(ctx, "run-2"))
}

func TestLocalBrokerNilHook(t *testing.T) {
	ctx := context.Background()
	topic := Local[string]().Topic(ctx, "run-1")
	_, err := topic.Subscribe(ctx, nil)
	require.Error(t, err)
}

func TestLocalBrokerUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	topic := Local[string]().Topic(ctx, "run-1")

	hook := &captureHook{}
	sub, err := topic.Subscribe(ctx, hook)
	require.NoError(t, err)
	sub.Unsubscribe()
	// double unsubscribe must not panic
	sub.Unsubscribe()

	require.NoError(t, topic.Publish(ctx, events.Result[string]{
		RunID:  uuid.New(),
		TurnID: uuid.New(),
		Result: "late",
	}))

	time.Sleep(50 * time.Millisecond)
	_, _, results, _ := hook.counts()
	assert.Zero(t, results)
}

func TestLocalBrokerCancelledSubscriberContext(t *testing.T) {
	ctx := context.Background()
	topic := Local[string]().Topic(ctx, "run-1")

	subCtx, cancel := context.WithCancel(ctx)
	hook := &captureHook{}
	_, err := topic.Subscribe(subCtx, hook)
	require.NoError(t, err)
	cancel()

	require.NoError(t, topic.Publish(ctx, events.Result[string]{
		RunID:  uuid.New(),
		TurnID: uuid.New(),
		Result: "late",
	}))

	time.Sleep(50 * time.Millisecond)
	_, _, results, _ := hook.counts()
	assert.Zero(t, results)
}
