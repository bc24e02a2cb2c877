package blueprint

import (
	"context"
	"fmt"
	"slices"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/internal/executor"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
)

// Knot ties a set of agents to an ordered conversation plan. Each step names
// the agent that should handle it; agents are resolved at run time so the
// same plan can be reused with different rosters.
type Knot struct {
	name   string
	agents *haxmap.Map[string, api.Agent]
	steps  []ConversationStep
}

// Agents registers one or more agents with the knot, keyed by their name.
func Agents(agent api.Agent, extraAgents ...api.Agent) opts.Option[Knot] {
	return opts.Type[Knot](func(o *Knot) error {
		o.agents.Set(agent.Name(), agent)
		for elem := range slices.Values(extraAgents) {
			o.agents.Set(elem.Name(), elem)
		}
		return nil
	})
}

// Steps appends conversation steps, run in the order given.
func Steps(step ConversationStep, extraSteps ...ConversationStep) opts.Option[Knot] {
	return opts.Type[Knot](func(o *Knot) error {
		o.steps = append(o.steps, step)
		o.steps = append(o.steps, extraSteps...)
		return nil
	})
}

// Name sets the sender name stamped on user prompts. Defaults to "User".
var Name = opts.ForName[Knot, string]("name")

// New builds a Knot from the given options.
func New(options ...opts.Option[Knot]) *Knot {
	k := &Knot{
		name:   "User",
		agents: haxmap.New[string, api.Agent](),
	}
	if err := opts.Apply(k, options); err != nil {
		panic(err)
	}
	return k
}

// Run executes the conversation plan. Intermediate steps discard their
// completion; only the final step resolves the caller's promise and carries
// the structured-output schema. The execution context is closed before Run
// returns, which is what forwards the result to the hook.
func (k *Knot) Run(ctx context.Context, rc ExecutionContext) error {
	defer rc.onClose(ctx)

	maxItems := len(k.steps) - 1

	for i, step := range k.steps {
		var promise executor.Promise
		var schema *provider.StructuredOutput
		if i < maxItems {
			promise = noopPromise{}
		} else {
			promise = rc.promise
			schema = rc.responseSchema
		}

		if err := k.runStep(ctx, step.agentName, step.task, ExecutionContext{
			executor:       rc.executor,
			hook:           rc.hook,
			promise:        promise,
			contextVars:    rc.contextVars,
			onClose:        rc.onClose,
			responseSchema: schema,
			stream:         rc.stream,
			maxTurns:       rc.maxTurns,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (k *Knot) runStep(ctx context.Context, agentName string, prompt task, rc ExecutionContext) error {
	agent, found := k.agents.Get(agentName)
	if !found {
		return fmt.Errorf("agent %s not found", agentName)
	}

	state := memory.New()

	var message messages.Message[messages.UserMessage]
	switch tsk := prompt.(type) {
	case stringTask:
		message = messages.New().WithSender(k.name).UserPrompt(string(tsk))
	case messageTask:
		message = messages.Message[messages.UserMessage](tsk)
	default:
		return fmt.Errorf("unknown task type %T", tsk)
	}
	state.AddUserPrompt(message)
	rc.hook.OnUserPrompt(ctx, message)

	cmd, err := rc.createCommand(agent, state)
	if err != nil {
		return err
	}

	return rc.executor.Run(ctx, cmd, rc.promise)
}
