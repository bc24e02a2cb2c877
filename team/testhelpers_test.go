package team

import (
	"context"
	"sync"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
)

// scriptedProvider plays back one response per ChatCompletion call, repeating
// the last entry when calls outnumber the script.
type scriptedProvider struct {
	mu     sync.Mutex
	script []provider.StreamEvent
	calls  int
}

func (p *scriptedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++

	ch := make(chan provider.StreamEvent, 1)
	ch <- p.script[idx]
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func say(content string) provider.StreamEvent {
	return provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: content},
		},
	}
}

func callTool(name, args string) provider.StreamEvent {
	return provider.Response[messages.ToolCallMessage]{
		Response: messages.ToolCallMessage{
			ToolCalls: []messages.ToolCallData{{ID: "call_1", Name: name, Arguments: args}},
		},
	}
}

type scriptedModel struct {
	prov provider.Provider
}

func (m scriptedModel) Provider() provider.Provider { return m.prov }
func (m scriptedModel) Name() string                { return "scripted_model" }

type scriptedAgent struct {
	name  string
	prov  provider.Provider
	tools []tool.Definition
}

func (a *scriptedAgent) Name() string             { return a.name }
func (a *scriptedAgent) Model() api.Model         { return scriptedModel{prov: a.prov} }
func (a *scriptedAgent) Instructions() string     { return "scripted" }
func (a *scriptedAgent) Tools() []tool.Definition { return a.tools }
func (a *scriptedAgent) ParallelToolCalls() bool  { return false }
func (a *scriptedAgent) RenderInstructions(types.ContextVars) (string, error) {
	return a.Instructions(), nil
}

func newScriptedAgent(name string, replies ...provider.StreamEvent) (*scriptedAgent, *scriptedProvider) {
	prov := &scriptedProvider{script: replies}
	return &scriptedAgent{name: name, prov: prov}, prov
}
