package blueprint

import (
	"fmt"

	"github.com/jkmaina/autogen-blueprint/messages"
)

// Task is the set of values accepted as the prompt of a conversation step:
// a plain string or a prepared user message.
type Task interface {
	~string | messages.Message[messages.UserMessage]
}

type task interface {
	task()
}

type stringTask string

func (s stringTask) task() {}

type messageTask messages.Message[messages.UserMessage]

func (m messageTask) task() {}

// ConversationStep pairs an agent name with the task it should work on.
type ConversationStep struct {
	agentName string
	task      task
}

// Step builds a ConversationStep for the named agent.
func Step[T Task](agentName string, tsk T) ConversationStep {
	var t task
	switch xt := any(tsk).(type) {
	case string:
		t = stringTask(xt)
	case messages.Message[messages.UserMessage]:
		t = messageTask(xt)
	default:
		panic(fmt.Sprintf("invalid task type: %T", xt))
	}
	return ConversationStep{
		agentName: agentName,
		task:      t,
	}
}
