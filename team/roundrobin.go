package team

import (
	"context"
	"errors"

	"github.com/jkmaina/autogen-blueprint/api"
)

// RoundRobin rotates through its participants in a fixed order until the
// termination condition fires.
type RoundRobin struct {
	settings
	participants []api.Agent
}

// NewRoundRobin builds a round-robin team over the given participants.
func NewRoundRobin(participants []api.Agent, options ...Option) (*RoundRobin, error) {
	if len(participants) == 0 {
		return nil, errors.New("at least one participant is required")
	}

	s, err := applySettings(options)
	if err != nil {
		return nil, err
	}
	return &RoundRobin{settings: s, participants: participants}, nil
}

func (t *RoundRobin) Run(ctx context.Context, task string) (TaskResult, error) {
	t.condition.Reset()
	thread := seedThread(ctx, task, t.hook)

	// the task message counts towards message-based conditions
	if reason, stop := t.condition.Check(thread.Messages()); stop {
		return TaskResult{Messages: thread.Messages(), StopReason: reason}, nil
	}

	for turn := 0; ; turn++ {
		agent := t.participants[turn%len(t.participants)]

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
