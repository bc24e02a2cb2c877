// Package provider defines the interface between the run loop and the model
// backends, plus the stream events the backends emit while a completion is
// in flight.
package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/tool"
)

// Provider is implemented once per model backend. ChatCompletion always
// returns a channel: non-streaming backends simply emit a single Response
// event before closing it.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams carries everything a backend needs for one model
// round-trip.
type CompletionParams struct {
	// RunID identifies the run this completion belongs to.
	RunID uuid.UUID

	// Instructions is the system prompt for this turn.
	Instructions string

	// Thread holds the conversation so far.
	Thread *memory.Aggregator

	// Stream requests incremental chunks instead of a single response.
	Stream bool

	// ResponseSchema, when set, asks the model for structured output.
	ResponseSchema *StructuredOutput

	// Model names the model to use and the provider that hosts it.
	Model interface {
		Name() string
		Provider() Provider
	}

	// Tools lists the functions the model may call.
	Tools []tool.Definition

	_ struct{} // require keyed usage
}

// StructuredOutput describes a JSON schema the model response must follow.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}
