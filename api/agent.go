// Package api holds the small set of interfaces that tie agents, models and
// providers together without creating import cycles between them.
package api

import (
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
)

// Agent is the capability surface every agent exposes to the run loop.
//
// The interface is deliberately small and read-only: an agent's name, model
// and toolset are fixed at construction, only the instructions vary per run
// through the context variables. This keeps agents safe to share between
// concurrent runs and between orchestration patterns.
type Agent interface {
	// Name returns the agent's unique identifier. Handoffs between agents
	// address each other by this name.
	Name() string

	// Model returns the model the agent talks to, including the provider
	// that hosts it.
	Model() Model

	// Instructions returns the raw, unrendered system instructions.
	Instructions() string

	// Tools returns the functions this agent may call during a run.
	Tools() []tool.Definition

	// ParallelToolCalls reports whether tool calls from a single model
	// response may execute concurrently.
	ParallelToolCalls() bool

	// RenderInstructions produces the system instructions for a run,
	// expanding any template placeholders from the context variables.
	RenderInstructions(types.ContextVars) (string, error)
}
