// Package blueprint is the entry point for composing and running multi-agent
// conversations. A Knot holds a set of named agents and an ordered list of
// conversation steps; an ExecutionContext decides where those steps run
// (in-process or on a temporal worker) and how results are delivered back to
// the caller through a typed Hook.
//
// A minimal conversation looks like:
//
//	agent := agent.New(agent.Name("helper"), agent.Model(openai.GPT4oMini()))
//	k := blueprint.New(
//	    blueprint.Agents(agent),
//	    blueprint.Steps(blueprint.Step("helper", "summarize the readme")),
//	)
//	err := k.Run(ctx, blueprint.Local[string](hook))
package blueprint
