package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/tool"
	"github.com/jkmaina/autogen-blueprint/types"
)

// defaultSelectorPrompt is rendered with the team roster and the conversation
// so far, and asks the model for the name of the next speaker.
const defaultSelectorPrompt = `You are selecting the next speaker in a team conversation.

Team members:
{{.Roles}}

Conversation history:
{{.History}}

Select one agent from: {{.Participants}}.
Respond with only the agent name.`

// Selector asks a model to pick the next speaker after every turn. Bad or
// ambiguous selections fall back to round-robin order.
type Selector struct {
	settings
	model        api.Model
	participants []api.Agent
}

// NewSelector builds a model-driven selector team. The model only picks
// speakers, the participants keep their own models for the actual turns.
func NewSelector(model api.Model, participants []api.Agent, options ...Option) (*Selector, error) {
	if model == nil {
		return nil, errors.New("a selector model is required")
	}
	if len(participants) == 0 {
		return nil, errors.New("at least one participant is required")
	}

	s, err := applySettings(options)
	if err != nil {
		return nil, err
	}
	if s.prompt == "" {
		s.prompt = defaultSelectorPrompt
	}
	if _, err := template.New("selector").Parse(s.prompt); err != nil {
		return nil, fmt.Errorf("invalid selector prompt: %w", err)
	}

	return &Selector{settings: s, model: model, participants: participants}, nil
}

func (t *Selector) Run(ctx context.Context, task string) (TaskResult, error) {
	t.condition.Reset()
	thread := seedThread(ctx, task, t.hook)

	if reason, stop := t.condition.Check(thread.Messages()); stop {
		return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
	}

	lastSpeaker := -1
	for {
		idx, err := t.selectSpeaker(ctx, thread, lastSpeaker)
		if err != nil {
			return TaskResult{Messages: thread.Messages()}, err
		}
		lastSpeaker = idx
		agent := t.participants[idx]

		before := thread.Len()
		if _, err := runTurn(ctx, agent, thread, t.hook, t.contextVars); err != nil {
			return TaskResult{Messages: thread.Messages()}, err
		}

		delta := thread.Messages()[before:]
		if reason, stop := t.condition.Check(delta); stop {
			return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
		}
	}
}

// selectSpeaker runs the selection prompt on a throwaway thread so the
// deliberation never leaks into the team conversation.
func (t *Selector) selectSpeaker(ctx context.Context, thread *memory.Aggregator, lastSpeaker int) (int, error) {
	prompt, err := t.renderPrompt(thread)
	if err != nil {
		return 0, err
	}

	scratch := memory.New()
	scratch.AddUserPrompt(messages.New().UserPrompt(prompt))

	reply, err := runTurn(ctx, &selectorAgent{model: t.model}, scratch, noopHook{}, nil)
	if err != nil {
		return 0, err
	}

	if idx, ok := t.matchParticipant(reply, lastSpeaker); ok {
		return idx, nil
	}
	// bad selection, continue in round-robin order
	return (lastSpeaker + 1) % len(t.participants), nil
}

func (t *Selector) renderPrompt(thread *memory.Aggregator) (string, error) {
	var roles strings.Builder
	var names []string
	for _, agent := range t.participants {
		fmt.Fprintf(&roles, "- %s: %s\n", agent.Name(), agent.Instructions())
		names = append(names, agent.Name())
	}

	var history strings.Builder
	for _, msg := range thread.Messages() {
		if text := messageText(msg); text != "" {
			sender := msg.Sender
			if sender == "" {
				sender = "unknown"
			}
			fmt.Fprintf(&history, "%s: %s\n", sender, text)
		}
	}

	tmpl, err := template.New("selector").Parse(t.prompt)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	err = tmpl.Execute(&buf, map[string]string{
		"Roles":        roles.String(),
		"History":      history.String(),
		"Participants": strings.Join(names, ", "),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (t *Selector) matchParticipant(reply string, lastSpeaker int) (int, bool) {
	reply = strings.TrimSpace(reply)

	match := -1
	for i, agent := range t.participants {
		if strings.EqualFold(reply, agent.Name()) {
			match = i
			break
		}
		if strings.Contains(strings.ToLower(reply), strings.ToLower(agent.Name())) && match < 0 {
			match = i
		}
	}

	if match < 0 {
		return 0, false
	}
	if !t.allowRepeated && match == lastSpeaker {
		return 0, false
	}
	return match, true
}

func messageText(m messages.Message[messages.ModelMessage]) string {
	switch p := m.Payload.(type) {
	case messages.UserMessage:
		return p.Content.Content
	case messages.AssistantMessage:
		return p.Content.Content
	case messages.ToolResponse:
		return p.Content
	default:
		return ""
	}
}

// selectorAgent is the minimal agent wrapped around the selection model.
type selectorAgent struct {
	model api.Model
}

func (a *selectorAgent) Name() string             { return "speaker_selector" }
func (a *selectorAgent) Model() api.Model         { return a.model }
func (a *selectorAgent) Instructions() string     { return "You select the next speaker of a team." }
func (a *selectorAgent) Tools() []tool.Definition { return nil }
func (a *selectorAgent) ParallelToolCalls() bool  { return false }
func (a *selectorAgent) RenderInstructions(types.ContextVars) (string, error) {
	return a.Instructions(), nil
}
