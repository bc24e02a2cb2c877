package agent

import (
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/internal/registry"
)

// Global holds every agent that has been constructed through the top-level
// workflow DSL so that handoff targets can be resolved by name.
var Global = registry.New[api.Agent]()

func Add(agent api.Agent) {
	Global.Add(agent.Name(), agent)
}

func Get(name string) (api.Agent, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}
