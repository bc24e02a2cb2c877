package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/memory"
	"golang.org/x/sync/errgroup"
)

type edge struct {
	from      string
	to        string
	condition string
}

// GraphBuilder assembles a workflow graph of agent nodes. Edges may carry a
// condition: the edge only activates when the source node's output contains
// the condition text. Unconditional edges always activate once the source
// completes.
type GraphBuilder struct {
	agents map[string]api.Agent
	order  []string
	edges  []edge
	errs   []error
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{agents: make(map[string]api.Agent)}
}

func (b *GraphBuilder) AddNode(agent api.Agent) *GraphBuilder {
	name := agent.Name()
	if _, exists := b.agents[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
		return b
	}
	b.agents[name] = agent
	b.order = append(b.order, name)
	return b
}

func (b *GraphBuilder) AddEdge(from, to string) *GraphBuilder {
	return b.AddConditionalEdge(from, to, "")
}

func (b *GraphBuilder) AddConditionalEdge(from, to, condition string) *GraphBuilder {
	b.edges = append(b.edges, edge{from: from, to: to, condition: condition})
	return b
}

// Build validates the graph and produces a runnable flow. The graph must be
// acyclic and every edge endpoint must be a registered node.
func (b *GraphBuilder) Build(options ...Option) (*GraphFlow, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.order) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	for _, e := range b.edges {
		if _, ok := b.agents[e.from]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", e.from)
		}
		if _, ok := b.agents[e.to]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", e.to)
		}
		if e.from == e.to {
			return nil, fmt.Errorf("self edge on node %q", e.from)
		}
	}

	if err := b.checkAcyclic(); err != nil {
		return nil, err
	}

	s, err := applySettings(options)
	if err != nil {
		return nil, err
	}

	return &GraphFlow{
		settings: s,
		agents:   b.agents,
		order:    b.order,
		edges:    b.edges,
	}, nil
}

// checkAcyclic runs Kahn's algorithm over all edges, ignoring conditions.
func (b *GraphBuilder) checkAcyclic() error {
	indegree := make(map[string]int, len(b.order))
	for _, e := range b.edges {
		indegree[e.to]++
	}

	var queue []string
	for _, name := range b.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, e := range b.edges {
			if e.from != name {
				continue
			}
			indegree[e.to]--
			if indegree[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}

	if visited != len(b.order) {
		return fmt.Errorf("graph contains a cycle")
	}
	return nil
}

// GraphFlow executes a validated workflow graph. Nodes whose dependencies
// have all resolved run in parallel; conditional branches that never
// activate are skipped together with everything only reachable through them.
type GraphFlow struct {
	settings
	agents map[string]api.Agent
	order  []string
	edges  []edge
}

type nodeState int

const (
	nodePending nodeState = iota
	nodeDone
	nodeSkipped
)

type edgeState int

const (
	edgeUndetermined edgeState = iota
	edgeFired
	edgeDead
)

func (g *GraphFlow) Run(ctx context.Context, task string) (TaskResult, error) {
	g.condition.Reset()
	thread := seedThread(ctx, task, g.hook)

	if reason, stop := g.condition.Check(thread.Messages()); stop {
		return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
	}

	state := make(map[string]nodeState, len(g.order))
	outputs := make(map[string]string, len(g.order))

	for {
		g.propagateSkips(state, outputs)

		ready := g.readyNodes(state, outputs)
		if len(ready) == 0 {
			return TaskResult{Messages: thread.Messages(), StopReason: "graph execution completed"}, nil
		}

		grp, gctx := errgroup.WithContext(ctx)
		forks := make([]*memory.Aggregator, len(ready))
		results := make([]string, len(ready))
		for i, name := range ready {
			forks[i] = thread.Fork()
			grp.Go(func() error {
				out, err := runTurn(gctx, g.agents[name], forks[i], g.hook, g.contextVars)
				results[i] = out
				return err
			})
		}
		if err := grp.Wait(); err != nil {
			return TaskResult{Messages: thread.Messages()}, err
		}

		before := thread.Len()
		for i, name := range ready {
			thread.Join(forks[i])
			state[name] = nodeDone
			outputs[name] = results[i]
		}

		delta := thread.Messages()[before:]
		if reason, stop := g.condition.Check(delta); stop {
			return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
		}
	}
}

func (g *GraphFlow) evalEdge(e edge, state map[string]nodeState, outputs map[string]string) edgeState {
	switch state[e.from] {
	case nodeDone:
		if e.condition == "" || strings.Contains(outputs[e.from], e.condition) {
			return edgeFired
		}
		return edgeDead
	case nodeSkipped:
		return edgeDead
	default:
		return edgeUndetermined
	}
}

// readyNodes returns the pending nodes whose incoming edges are all resolved
// with at least one activation. Source nodes without incoming edges are
// ready immediately.
func (g *GraphFlow) readyNodes(state map[string]nodeState, outputs map[string]string) []string {
	var ready []string
	for _, name := range g.order {
		if state[name] != nodePending {
			continue
		}

		incoming := 0
		fired := 0
		undetermined := 0
		for _, e := range g.edges {
			if e.to != name {
				continue
			}
			incoming++
			switch g.evalEdge(e, state, outputs) {
			case edgeFired:
				fired++
			case edgeUndetermined:
				undetermined++
			}
		}

		if incoming == 0 || (fired > 0 && undetermined == 0) {
			ready = append(ready, name)
		}
	}
	return ready
}

// propagateSkips marks nodes unreachable once every incoming edge is dead.
func (g *GraphFlow) propagateSkips(state map[string]nodeState, outputs map[string]string) {
	for changed := true; changed; {
		changed = false
		for _, name := range g.order {
			if state[name] != nodePending {
				continue
			}

			incoming := 0
			dead := 0
			for _, e := range g.edges {
				if e.to != name {
					continue
				}
				incoming++
				if g.evalEdge(e, state, outputs) == edgeDead {
					dead++
				}
			}

			if incoming > 0 && dead == incoming {
				state[name] = nodeSkipped
				changed = true
			}
		}
	}
}
