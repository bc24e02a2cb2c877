package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/events"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunCompletesWithAssistantMessage(t *testing.T) {
	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{assistantResponse("the answer is 42")},
	}}
	agent := newTestAgent(prov)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("what is the answer?"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(agent, thread, hook)
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	require.NoError(t, NewLocal().Run(context.Background(), cmd, fut))

	result, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", result)

	msgs := thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "test_agent", msgs[1].Sender)

	require.Len(t, hook.assistantMessages, 1)
	assert.Equal(t, "the answer is 42", hook.assistantMessages[0].Payload.Content.Content)
}

func TestLocalRunToolCallThenCompletion(t *testing.T) {
	called := false
	def := tool.Must(func(query string) string {
		called = true
		return "result for " + query
	}, tool.Name("lookup"), tool.Parameters("query"))

	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{toolCallResponse(messages.ToolCallData{ID: "call_1", Name: "lookup", Arguments: `{"query":"go"}`})},
		{assistantResponse("found it")},
	}}
	agent := newTestAgent(prov, def)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("look up go"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(agent, thread, hook)
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	require.NoError(t, NewLocal().Run(context.Background(), cmd, fut))

	result, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, "found it", result)
	assert.True(t, called)
	assert.Equal(t, 2, prov.callCount())

	require.Len(t, hook.toolCallMessages, 1)
	require.Len(t, hook.toolResponses, 1)
	assert.Equal(t, "result for go", hook.toolResponses[0].Payload.Content)
}

func TestLocalRunAgentHandoff(t *testing.T) {
	specialist := newTestAgent(&mockProvider{scripts: [][]provider.StreamEvent{
		{assistantResponse("specialist says hi")},
	}})
	specialist.testName = "specialist"

	transfer := tool.Must(func() api.Agent { return specialist }, tool.Name("transfer_to_specialist"))

	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{toolCallResponse(messages.ToolCallData{ID: "call_1", Name: "transfer_to_specialist", Arguments: `{}`})},
	}}
	triage := newTestAgent(prov, transfer)
	triage.testName = "triage"

	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("I need an expert"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(triage, thread, hook)
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	require.NoError(t, NewLocal().Run(context.Background(), cmd, fut))

	result, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, "specialist says hi", result)

	require.Len(t, hook.assistantMessages, 1)
	assert.Equal(t, "specialist", hook.assistantMessages[0].Sender)
}

func TestLocalRunProviderError(t *testing.T) {
	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{provider.Error{Err: errors.New("rate limited")}},
	}}
	agent := newTestAgent(prov)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("hi"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(agent, thread, hook)
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	require.Error(t, NewLocal().Run(context.Background(), cmd, fut))

	_, err = fut.Get()
	require.EqualError(t, err, "rate limited")
	require.Len(t, hook.errs, 1)
}

func TestLocalRunUnknownTool(t *testing.T) {
	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{toolCallResponse(messages.ToolCallData{ID: "call_1", Name: "no_such_tool", Arguments: `{}`})},
	}}
	agent := newTestAgent(prov)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("hi"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(agent, thread, hook)
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	err = NewLocal().Run(context.Background(), cmd, fut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestLocalRunMaxTurns(t *testing.T) {
	def := tool.Must(func() string { return "ok" }, tool.Name("noop"))

	// every turn ends in a tool call, so the loop can never complete
	prov := &mockProvider{scripts: [][]provider.StreamEvent{
		{toolCallResponse(messages.ToolCallData{ID: "call_1", Name: "noop", Arguments: `{}`})},
	}}
	agent := newTestAgent(prov, def)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("hi"))
	hook := &mockHook{}

	cmd, err := NewRunCommand(agent, thread, hook)
	require.NoError(t, err)
	cmd = cmd.WithMaxTurns(4)

	fut := NewFuture(DefaultUnmarshal[string]())
	err = NewLocal().Run(context.Background(), cmd, fut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max turns")
}

func TestLocalRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := make(chan provider.StreamEvent)
	prov := &blockingProvider{ch: blocked}
	agent := newTestAgent(prov)
	thread := memory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("hi"))

	cmd, err := NewRunCommand(agent, thread, &mockHook{})
	require.NoError(t, err)

	fut := NewFuture(DefaultUnmarshal[string]())
	err = NewLocal().Run(ctx, cmd, fut)
	require.ErrorIs(t, err, context.Canceled)
}

type blockingProvider struct {
	ch chan provider.StreamEvent
}

func (b *blockingProvider) ChatCompletion(context.Context, provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	return b.ch, nil
}

func TestBuildArgList(t *testing.T) {
	args := buildArgList(`{"query":"go","limit":5}`, map[string]string{
		"param0": "query",
		"param1": "limit",
	})

	require.Len(t, args, 2)
	assert.Equal(t, "go", args[0].Interface())
	assert.InDelta(t, 5.0, args[1].Interface(), 0.001)
}

func TestBuildArgListSparseIndices(t *testing.T) {
	// the map is not required to start at param0
	args := buildArgList(`{"v":"hello"}`, map[string]string{"param1": "v"})

	require.Len(t, args, 1)
	assert.Equal(t, "hello", args[0].Interface())
}

func TestCallFunction(t *testing.T) {
	t.Run("string result", func(t *testing.T) {
		res, err := callFunction(func(s string) string { return "got " + s }, buildArgList(`{"v":"x"}`, map[string]string{"param0": "v"}), nil)
		require.NoError(t, err)
		assert.Equal(t, "got x", res.Value)
	})

	t.Run("int result", func(t *testing.T) {
		res, err := callFunction(func() int { return 7 }, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "7", res.Value)
	})

	t.Run("error result", func(t *testing.T) {
		_, err := callFunction(func() error { return errors.New("tool failed") }, nil, nil)
		require.EqualError(t, err, "tool failed")
	})

	t.Run("context vars injected and returned", func(t *testing.T) {
		cv := types.ContextVars{"user": "alice"}
		res, err := callFunction(func(vars types.ContextVars) types.ContextVars {
			vars["seen"] = vars["user"]
			return vars
		}, nil, cv)
		require.NoError(t, err)
		assert.Equal(t, "alice", res.ContextVariables["seen"])
	})

	t.Run("context vars between args", func(t *testing.T) {
		res, err := callFunction(
			func(vars types.ContextVars, s string) string { return s },
			buildArgList(`{"v":"hello"}`, map[string]string{"param1": "v"}),
			types.ContextVars{},
		)
		require.NoError(t, err)
		assert.Equal(t, "hello", res.Value)
	})

	t.Run("context vars first with named parameter", func(t *testing.T) {
		def := tool.Must(
			func(vars types.ContextVars, s string) string { return "saw " + s },
			tool.Name("peek"),
			tool.Parameters("s"),
		)
		res, err := callFunction(
			def.Function,
			buildArgList(`{"s":"hello"}`, def.Parameters),
			types.ContextVars{},
		)
		require.NoError(t, err)
		assert.Equal(t, "saw hello", res.Value)
	})

	t.Run("missing argument gets zero value", func(t *testing.T) {
		res, err := callFunction(
			func(s string, n float64) string { return fmt.Sprintf("%s/%v", s, n) },
			buildArgList(`{"v":"x"}`, map[string]string{"param0": "v", "param1": "n"}),
			nil,
		)
		require.NoError(t, err)
		assert.Equal(t, "x/0", res.Value)
	})

	t.Run("time result", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		res, err := callFunction(func() time.Time { return now }, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, now.Format(time.RFC3339), res.Value)
	})

	t.Run("struct result marshalled", func(t *testing.T) {
		type payload struct {
			OK bool `json:"ok"`
		}
		res, err := callFunction(func() payload { return payload{OK: true} }, nil, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, res.Value)
	})
}

func TestWrapErr(t *testing.T) {
	_, has := wrapErr(cmdID(t), cmdID(t), "agent", nil)
	assert.False(t, has)

	ee, has := wrapErr(cmdID(t), cmdID(t), "agent", errors.New("x"))
	assert.True(t, has)
	assert.Equal(t, "agent", ee.Sender)

	orig := events.Error{Sender: "other", Err: errors.New("y")}
	wrapped, has := wrapErr(cmdID(t), cmdID(t), "agent", orig)
	assert.True(t, has)
	assert.Equal(t, orig, wrapped)
}

func cmdID(t *testing.T) uuid.UUID {
	t.Helper()
	cmd, err := NewRunCommand(newTestAgent(&mockProvider{}), memory.New(), &mockHook{})
	require.NoError(t, err)
	return cmd.ID()
}
