package blueprint

import (
	"context"
	"sync"
	"testing"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (p *scriptedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	p.calls++

	ch := make(chan provider.StreamEvent, 1)
	ch <- provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: p.replies[idx]},
		},
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubModel struct {
	prov provider.Provider
}

func (m stubModel) Provider() provider.Provider { return m.prov }
func (m stubModel) Name() string                { return "stub_model" }

type stubAgent struct {
	name string
	prov provider.Provider
}

func (a *stubAgent) Name() string                { return a.name }
func (a *stubAgent) Model() api.Model            { return stubModel{prov: a.prov} }
func (a *stubAgent) Instructions() string        { return "be helpful" }
func (a *stubAgent) Tools() []tool.Definition    { return nil }
func (a *stubAgent) ParallelToolCalls() bool     { return false }
func (a *stubAgent) RenderInstructions(types.ContextVars) (string, error) {
	return a.Instructions(), nil
}

type recordingHook struct {
	mu      sync.Mutex
	prompts []messages.Message[messages.UserMessage]
	results []string
	errs    []error
	closed  bool
}

func (h *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, msg)
}

func (h *recordingHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (h *recordingHook) OnToolCallChunk(context.Context, messages.Message[messages.ToolCallMessage]) {
}

func (h *recordingHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}

func (h *recordingHook) OnToolCallMessage(context.Context, messages.Message[messages.ToolCallMessage]) {
}

func (h *recordingHook) OnToolCallResponse(context.Context, messages.Message[messages.ToolResponse]) {
}

func (h *recordingHook) OnResult(_ context.Context, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *recordingHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHook) OnClose(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func TestStep(t *testing.T) {
	t.Run("string task", func(t *testing.T) {
		step := Step("writer", "draft an intro")
		assert.Equal(t, "writer", step.agentName)
		assert.IsType(t, stringTask(""), step.task)
	})

	t.Run("message task", func(t *testing.T) {
		msg := messages.New().UserPrompt("hello")
		step := Step("writer", msg)
		assert.IsType(t, messageTask{}, step.task)
	})
}

func TestKnotRunSingleStep(t *testing.T) {
	prov := &scriptedProvider{replies: []string{"all done"}}
	hook := &recordingHook{}

	k := New(
		Agents(&stubAgent{name: "writer", prov: prov}),
		Steps(Step("writer", "write something")),
	)

	require.NoError(t, k.Run(context.Background(), Local[string](hook)))

	require.Len(t, hook.results, 1)
	assert.Equal(t, "all done", hook.results[0])
	assert.True(t, hook.closed)

	require.Len(t, hook.prompts, 1)
	assert.Equal(t, "User", hook.prompts[0].Sender)
	assert.Equal(t, "write something", hook.prompts[0].Payload.Content.Content)
}

func TestKnotRunMultiStep(t *testing.T) {
	writerProv := &scriptedProvider{replies: []string{"draft"}}
	editorProv := &scriptedProvider{replies: []string{"polished"}}
	hook := &recordingHook{}

	k := New(
		Agents(
			&stubAgent{name: "writer", prov: writerProv},
			&stubAgent{name: "editor", prov: editorProv},
		),
		Steps(
			Step("writer", "write a draft"),
			Step("editor", "polish the draft"),
		),
	)

	require.NoError(t, k.Run(context.Background(), Local[string](hook)))

	assert.Equal(t, 1, writerProv.callCount())
	assert.Equal(t, 1, editorProv.callCount())

	// only the final step resolves the result
	require.Len(t, hook.results, 1)
	assert.Equal(t, "polished", hook.results[0])
}

func TestKnotRunUnknownAgent(t *testing.T) {
	hook := &recordingHook{}
	k := New(Steps(Step("ghost", "boo")))

	err := k.Run(context.Background(), Local[string](hook))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.True(t, hook.closed)
}

func TestKnotCustomSenderName(t *testing.T) {
	prov := &scriptedProvider{replies: []string{"ok"}}
	hook := &recordingHook{}

	k := New(
		Name("Analyst"),
		Agents(&stubAgent{name: "writer", prov: prov}),
		Steps(Step("writer", "go")),
	)

	require.NoError(t, k.Run(context.Background(), Local[string](hook)))
	require.Len(t, hook.prompts, 1)
	assert.Equal(t, "Analyst", hook.prompts[0].Sender)
}

func TestLocalOptions(t *testing.T) {
	hook := &recordingHook{}
	rc := Local[string](hook,
		WithContextVars(types.ContextVars{"k": "v"}),
		Streaming(true),
		WithMaxTurns(3),
	)

	assert.Equal(t, "v", rc.contextVars["k"])
	assert.True(t, rc.stream)
	assert.Equal(t, 3, rc.maxTurns)
}

func TestStructuredOutputOption(t *testing.T) {
	type report struct {
		Score int `json:"score"`
	}

	t.Run("struct gets a schema", func(t *testing.T) {
		rc := Local[report](&structHook[report]{}, StructuredOutput[report]("report", "scored report"))
		require.NotNil(t, rc.responseSchema)
		assert.Equal(t, "report", rc.responseSchema.Name)
		_, hasScore := rc.responseSchema.Schema.Properties.Get("score")
		assert.True(t, hasScore)
	})

	t.Run("string skips the schema", func(t *testing.T) {
		rc := Local[string](&recordingHook{}, StructuredOutput[string]("raw", "free text"))
		assert.Nil(t, rc.responseSchema)
	})
}

// structHook adapts recordingHook to a non-string result type.
type structHook[T any] struct {
	recordingHook
	typed []T
}

func (h *structHook[T]) OnResult(_ context.Context, result T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.typed = append(h.typed, result)
}
