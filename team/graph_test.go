package team

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphBuilderValidation(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		_, err := NewGraphBuilder().Build()
		require.Error(t, err)
	})

	t.Run("duplicate node", func(t *testing.T) {
		a1, _ := newScriptedAgent("a", say("x"))
		a2, _ := newScriptedAgent("a", say("y"))
		_, err := NewGraphBuilder().AddNode(a1).AddNode(a2).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("unknown edge endpoint", func(t *testing.T) {
		a, _ := newScriptedAgent("a", say("x"))
		_, err := NewGraphBuilder().AddNode(a).AddEdge("a", "ghost").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown node")
	})

	t.Run("cycle", func(t *testing.T) {
		a, _ := newScriptedAgent("a", say("x"))
		b, _ := newScriptedAgent("b", say("y"))
		_, err := NewGraphBuilder().
			AddNode(a).AddNode(b).
			AddEdge("a", "b").
			AddEdge("b", "a").
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("self edge", func(t *testing.T) {
		a, _ := newScriptedAgent("a", say("x"))
		_, err := NewGraphBuilder().AddNode(a).AddEdge("a", "a").Build()
		require.Error(t, err)
	})
}

func TestGraphFlowSequential(t *testing.T) {
	writer, writerProv := newScriptedAgent("writer", say("the draft"))
	editor, editorProv := newScriptedAgent("editor", say("the final text"))

	flow, err := NewGraphBuilder().
		AddNode(writer).AddNode(editor).
		AddEdge("writer", "editor").
		Build()
	require.NoError(t, err)

	result, err := flow.Run(context.Background(), "write an article")
	require.NoError(t, err)

	assert.Equal(t, 1, writerProv.callCount())
	assert.Equal(t, 1, editorProv.callCount())
	assert.Equal(t, "graph execution completed", result.StopReason)

	// task, writer, editor in order
	require.Len(t, result.Messages, 3)
	assert.Equal(t, "writer", result.Messages[1].Sender)
	assert.Equal(t, "editor", result.Messages[2].Sender)
}

func TestGraphFlowConditionalBranch(t *testing.T) {
	writer, _ := newScriptedAgent("writer", say("a rough draft"))
	reviewer, _ := newScriptedAgent("reviewer", say("verdict: approved as is"))
	reviser, reviserProv := newScriptedAgent("reviser", say("revised"))
	publisher, publisherProv := newScriptedAgent("publisher", say("published"))

	flow, err := NewGraphBuilder().
		AddNode(writer).AddNode(reviewer).AddNode(reviser).AddNode(publisher).
		AddEdge("writer", "reviewer").
		AddConditionalEdge("reviewer", "reviser", "major revision needed").
		AddConditionalEdge("reviewer", "publisher", "approved as is").
		Build()
	require.NoError(t, err)

	result, err := flow.Run(context.Background(), "publish this")
	require.NoError(t, err)

	assert.Equal(t, 0, reviserProv.callCount())
	assert.Equal(t, 1, publisherProv.callCount())
	assert.Equal(t, "graph execution completed", result.StopReason)
}

func TestGraphFlowParallelFanOutJoin(t *testing.T) {
	planner, _ := newScriptedAgent("planner", say("split the work"))
	backend, backendProv := newScriptedAgent("backend", say("api built"))
	frontend, frontendProv := newScriptedAgent("frontend", say("ui built"))
	integrator, integratorProv := newScriptedAgent("integrator", say("all merged"))

	flow, err := NewGraphBuilder().
		AddNode(planner).AddNode(backend).AddNode(frontend).AddNode(integrator).
		AddEdge("planner", "backend").
		AddEdge("planner", "frontend").
		AddEdge("backend", "integrator").
		AddEdge("frontend", "integrator").
		Build()
	require.NoError(t, err)

	result, err := flow.Run(context.Background(), "build the app")
	require.NoError(t, err)

	assert.Equal(t, 1, backendProv.callCount())
	assert.Equal(t, 1, frontendProv.callCount())
	// the integrator waits for both branches and runs exactly once
	assert.Equal(t, 1, integratorProv.callCount())

	// task + four agent messages
	assert.Len(t, result.Messages, 5)
	assert.Equal(t, "integrator", result.Messages[len(result.Messages)-1].Sender)
}
