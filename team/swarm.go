package team

import (
	"context"
	"errors"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/messages"
)

// Swarm is a handoff-driven team: the first participant starts and control
// moves whenever an agent calls a transfer tool that returns another agent.
// The participant that produced the last assistant message speaks next.
type Swarm struct {
	settings
	participants []api.Agent
	byName       map[string]int
}

// NewSwarm builds a swarm over the given participants. Handoffs resolve by
// agent name, so transfer tools may also return agents that are not part of
// the roster; the swarm then stays with the previous speaker afterwards.
func NewSwarm(participants []api.Agent, options ...Option) (*Swarm, error) {
	if len(participants) == 0 {
		return nil, errors.New("at least one participant is required")
	}

	s, err := applySettings(options)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(participants))
	for i, agent := range participants {
		byName[agent.Name()] = i
	}

	return &Swarm{settings: s, participants: participants, byName: byName}, nil
}

func (t *Swarm) Run(ctx context.Context, task string) (TaskResult, error) {
	t.condition.Reset()
	thread := seedThread(ctx, task, t.hook)

	if reason, stop := t.condition.Check(thread.Messages()); stop {
		return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
	}

	speaker := 0
	for {
		before := thread.Len()
		if _, err := runTurn(ctx, t.participants[speaker], thread, t.hook, t.contextVars); err != nil {
			return TaskResult{Messages: thread.Messages()}, err
		}

		delta := thread.Messages()[before:]
		if reason, stop := t.condition.Check(delta); stop {
			return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
		}

		// a handoff inside the turn changes who spoke last
		if idx, ok := t.lastSpeaker(delta); ok {
			speaker = idx
		}
	}
}

func (t *Swarm) lastSpeaker(delta []messages.Message[messages.ModelMessage]) (int, bool) {
	for i := len(delta) - 1; i >= 0; i-- {
		if _, ok := delta[i].Payload.(messages.AssistantMessage); !ok {
			continue
		}
		if idx, ok := t.byName[delta[i].Sender]; ok {
			return idx, true
		}
	}
	return 0, false
}
