package executor

import (
	"context"
	"sync"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
)

// mockProvider plays back a script of stream events, one entry per
// ChatCompletion call. The last entry repeats when calls outnumber entries.
type mockProvider struct {
	mu         sync.Mutex
	scripts    [][]provider.StreamEvent
	calls      int
	err        error
	lastParams provider.CompletionParams
}

func (m *mockProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	m.lastParams = params

	idx := m.calls
	if idx >= len(m.scripts) {
		idx = len(m.scripts) - 1
	}
	m.calls++

	script := m.scripts[idx]
	ch := make(chan provider.StreamEvent, len(script))
	for _, resp := range script {
		ch <- resp
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testModel struct {
	provider provider.Provider
}

func (m testModel) Provider() provider.Provider { return m.provider }
func (m testModel) Name() string                { return "test_model" }

type mockAgent struct {
	testName  string
	testModel api.Model
	testTools []tool.Definition
}

func (m *mockAgent) Name() string {
	if m.testName == "" {
		return "mock_agent"
	}
	return m.testName
}

func (m *mockAgent) Model() api.Model { return m.testModel }

func (m *mockAgent) Instructions() string { return "mock instructions" }

func (m *mockAgent) Tools() []tool.Definition { return m.testTools }

func (m *mockAgent) ParallelToolCalls() bool { return false }

func (m *mockAgent) RenderInstructions(types.ContextVars) (string, error) {
	return m.Instructions(), nil
}

type mockHook struct {
	mu                sync.Mutex
	assistantMessages []messages.Message[messages.AssistantMessage]
	toolCallMessages  []messages.Message[messages.ToolCallMessage]
	toolResponses     []messages.Message[messages.ToolResponse]
	errs              []error
}

func (h *mockHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage]) {}

func (h *mockHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {}

func (h *mockHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {}

func (h *mockHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantMessages = append(h.assistantMessages, msg)
}

func (h *mockHook) OnToolCallMessage(_ context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCallMessages = append(h.toolCallMessages, msg)
}

func (h *mockHook) OnToolCallResponse(_ context.Context, msg messages.Message[messages.ToolResponse]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolResponses = append(h.toolResponses, msg)
}

func (h *mockHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func assistantResponse(content string) provider.StreamEvent {
	return provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: content},
		},
	}
}

func toolCallResponse(calls ...messages.ToolCallData) provider.StreamEvent {
	return provider.Response[messages.ToolCallMessage]{
		Response: messages.ToolCallMessage{ToolCalls: calls},
	}
}

func newTestAgent(prov provider.Provider, tools ...tool.Definition) *mockAgent {
	return &mockAgent{
		testName:  "test_agent",
		testModel: testModel{provider: prov},
		testTools: tools,
	}
}
