package service

import (
	"context"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/internal/executor"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
)

// Runner executes a single task against an agent and returns the final
// assistant response. When onChunk is non-nil the run streams and every
// assistant delta is forwarded to it.
type Runner func(ctx context.Context, ag api.Agent, task string, onChunk func(content string)) (string, error)

// runLocal is the default runner: a fresh thread per request through the
// local run loop.
func runLocal(ctx context.Context, ag api.Agent, task string, onChunk func(content string)) (string, error) {
	thread := memory.New()
	thread.AddUserPrompt(messages.New().WithSender("User").UserPrompt(task))

	cmd, err := executor.NewRunCommand(ag, thread, chunkHook{onChunk: onChunk})
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		cmd = cmd.WithStream(true)
	}

	fut := executor.NewFuture(executor.DefaultUnmarshal[string]())
	if err := executor.NewLocal().Run(ctx, cmd, fut); err != nil {
		return "", err
	}
	return fut.Get()
}

// chunkHook forwards assistant deltas to the stream callback and ignores the
// rest of the conversation traffic.
type chunkHook struct {
	onChunk func(content string)
}

func (h chunkHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	if h.onChunk == nil {
		return
	}
	if content := msg.Payload.Content.Content; content != "" {
		h.onChunk(content)
	}
}

func (chunkHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage])        {}
func (chunkHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}
func (chunkHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (chunkHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {}
func (chunkHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])   {}
func (chunkHook) OnError(context.Context, error)                                                {}
