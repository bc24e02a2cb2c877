package blueprint

import (
	"context"
	"reflect"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/internal/broker"
	"github.com/jkmaina/autogen-blueprint/internal/executor"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/types"
	"github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"
	"go.temporal.io/sdk/client"
)

// ExecutionContext carries everything a Knot needs to run its steps: the
// executor, the event hook, the promise that will hold the final result, and
// the per-run settings (context variables, streaming, turn limits, structured
// output). It is meant for a single conversation and should not be shared
// across concurrent runs.
type ExecutionContext struct {
	executor       executor.Executor
	hook           events.MessageHook
	promise        executor.Promise
	responseSchema *provider.StructuredOutput
	contextVars    types.ContextVars
	onClose        func(context.Context)
	stream         bool
	maxTurns       int
}

func (e *ExecutionContext) createCommand(agent api.Agent, mem *memory.Aggregator) (executor.RunCommand, error) {
	cmd, err := executor.NewRunCommand(agent, mem, e.hook)
	if err != nil {
		return executor.RunCommand{}, err
	}
	if len(e.contextVars) > 0 {
		cmd = cmd.WithContextVariables(e.contextVars)
	}
	if e.responseSchema != nil {
		cmd = cmd.WithStructuredOutput(e.responseSchema)
	}
	if e.stream {
		cmd = cmd.WithStream(e.stream)
	}
	if e.maxTurns > 0 {
		cmd = cmd.WithMaxTurns(e.maxTurns)
	}
	return cmd, nil
}

// jsonSchema reflects a schema for T, except when T is a string or a
// gjson.Result. Those are treated as free-form output.
func jsonSchema[T any]() *jsonschema.Schema {
	var schema *jsonschema.Schema
	var t T
	_, isGjsonResult := any(t).(gjson.Result)
	isString := reflect.TypeFor[T]().Kind() == reflect.String

	if !isGjsonResult && !isString {
		schema = executor.ToJSONSchema[T]()
	}

	return schema
}

var (
	// WithContextVars seeds the template variables that agents and tools see
	// during the run.
	WithContextVars = opts.ForName[ExecutionContext, types.ContextVars]("contextVars")

	// Streaming toggles incremental delivery of assistant output through the
	// chunk hooks.
	Streaming = opts.ForName[ExecutionContext, bool]("stream")

	// WithMaxTurns caps the number of completion turns before the run is
	// aborted.
	WithMaxTurns = opts.ForName[ExecutionContext, int]("maxTurns")
)

// StructuredOutput asks the model to answer with JSON matching the schema of
// T. The name and description are forwarded to the provider alongside the
// schema.
func StructuredOutput[T any](name, description string) opts.Option[ExecutionContext] {
	return opts.Type[ExecutionContext](func(s *ExecutionContext) error {
		schema := jsonSchema[T]()
		if schema != nil {
			s.responseSchema = &provider.StructuredOutput{
				Name:        name,
				Description: description,
				Schema:      schema,
			}
		}
		return nil
	})
}

// Local builds an ExecutionContext that runs the conversation in-process.
// The hook receives every event, and once the run closes it receives the
// final result decoded as T.
func Local[T any](hook Hook[T], options ...opts.Option[ExecutionContext]) ExecutionContext {
	fut := executor.NewFuture(executor.DefaultUnmarshal[T]())
	dp := &deferredPromise[T]{
		promise: fut,
		hook:    hook,
	}

	execCtx := ExecutionContext{
		executor: executor.NewLocal(),
		hook:     hook,
		promise:  dp,
		onClose: func(ctx context.Context) {
			dp.Forward(ctx)
			hook.OnClose(ctx)
		},
	}

	if err := opts.Apply(&execCtx, options); err != nil {
		panic(err)
	}

	return execCtx
}

// Temporal builds an ExecutionContext that hands each step to a temporal
// worker. Events published by the worker flow back through NATS to the hook;
// the final result is resolved from the workflow outcome.
func Temporal[T any](hook Hook[T], tc client.Client, nc *nats.Conn, options ...opts.Option[ExecutionContext]) ExecutionContext {
	fut := executor.NewFuture(executor.DefaultUnmarshal[T]())
	dp := &deferredPromise[T]{
		promise: fut,
		hook:    hook,
	}

	execCtx := ExecutionContext{
		executor: executor.NewTemporalProxy(tc, broker.NATS[string](nc)),
		hook:     hook,
		promise:  dp,
		onClose: func(ctx context.Context) {
			dp.Forward(ctx)
			hook.OnClose(ctx)
		},
	}

	if err := opts.Apply(&execCtx, options); err != nil {
		panic(err)
	}

	return execCtx
}
