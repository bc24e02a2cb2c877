// Package team implements group-chat orchestration on top of the run loop:
// round-robin rotation, model-based speaker selection, handoff-driven swarms
// and graph workflows. A team owns the shared conversation thread, asks one
// agent at a time for a turn and consults a termination condition after every
// turn.
package team

import (
	"context"

	"github.com/fogfish/opts"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/internal/executor"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/termination"
	"github.com/jkmaina/autogen-blueprint/types"
)

// settings collects the knobs shared by all team flavors. Selector-specific
// fields live here too so the package exposes a single Option type.
type settings struct {
	condition     termination.Condition
	hook          events.MessageHook
	contextVars   types.ContextVars
	prompt        string
	allowRepeated bool
}

// Option configures a team during construction.
type Option = opts.Option[settings]

var (
	// WithTermination sets the stop condition. Defaults to a message cap.
	WithTermination = opts.ForName[settings, termination.Condition]("condition")

	// WithHook subscribes a hook to the team's conversation traffic.
	WithHook = opts.ForName[settings, events.MessageHook]("hook")

	// WithContextVars seeds template variables for every participant.
	WithContextVars = opts.ForName[settings, types.ContextVars]("contextVars")

	// WithSelectorPrompt overrides the speaker-selection prompt template of a
	// selector team.
	WithSelectorPrompt = opts.ForName[settings, string]("prompt")

	// AllowRepeatedSpeaker lets a selector pick the same agent twice in a
	// row.
	AllowRepeatedSpeaker = opts.ForName[settings, bool]("allowRepeated")
)

func applySettings(options []Option) (settings, error) {
	var s settings
	if err := opts.Apply(&s, options); err != nil {
		return settings{}, err
	}
	if s.condition == nil {
		s.condition = defaultTermination()
	}
	if s.hook == nil {
		s.hook = noopHook{}
	}
	return s, nil
}

// TaskResult is the outcome of a team run: the full conversation and the
// reason the team stopped.
type TaskResult struct {
	Messages   memory.AggregatedMessages
	StopReason string
}

// Team runs a task through a group of agents until a termination condition
// fires.
type Team interface {
	Run(ctx context.Context, task string) (TaskResult, error)
}

// defaultTermination caps runaway conversations when the caller does not
// provide a condition of their own.
func defaultTermination() termination.Condition {
	return termination.MaxMessages(25)
}

// runTurn lets the agent take one turn on the shared thread and returns the
// content of its final assistant message. Tool calls and handoffs resolve
// inside the turn.
func runTurn(ctx context.Context, agent api.Agent, thread *memory.Aggregator, hook events.MessageHook, cv types.ContextVars) (string, error) {
	cmd, err := executor.NewRunCommand(agent, thread, hook)
	if err != nil {
		return "", err
	}
	if len(cv) > 0 {
		cmd = cmd.WithContextVariables(cv)
	}

	fut := executor.NewFuture(executor.DefaultUnmarshal[string]())
	if err := executor.NewLocal().Run(ctx, cmd, fut); err != nil {
		return "", err
	}
	return fut.Get()
}

// seedThread starts a fresh conversation thread with the task as the user
// prompt.
func seedThread(ctx context.Context, task string, hook events.MessageHook) *memory.Aggregator {
	thread := memory.New()
	msg := messages.New().WithSender("User").UserPrompt(task)
	thread.AddUserPrompt(msg)
	hook.OnUserPrompt(ctx, msg)
	return thread
}

type noopHook struct{}

func (noopHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage])          {}
func (noopHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {}
func (noopHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage])   {}
func (noopHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (noopHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {}
func (noopHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse])   {}
func (noopHook) OnError(context.Context, error)                                                {}
