package termination

import (
	"testing"

	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantMsg(content string) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		Payload: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: content},
		},
	}
}

func toolResponseMsg(toolName, content string) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		Payload: messages.ToolResponse{ToolName: toolName, Content: content},
	}
}

func TestMaxMessages(t *testing.T) {
	cond := MaxMessages(3)

	_, stop := cond.Check(memory.AggregatedMessages{assistantMsg("one"), assistantMsg("two")})
	assert.False(t, stop)

	reason, stop := cond.Check(memory.AggregatedMessages{assistantMsg("three")})
	require.True(t, stop)
	assert.Contains(t, reason, "3")

	cond.Reset()
	_, stop = cond.Check(memory.AggregatedMessages{assistantMsg("after reset")})
	assert.False(t, stop)
}

func TestTextMention(t *testing.T) {
	cond := TextMention("TASK_COMPLETE")

	_, stop := cond.Check(memory.AggregatedMessages{assistantMsg("still working")})
	assert.False(t, stop)

	reason, stop := cond.Check(memory.AggregatedMessages{assistantMsg("done. TASK_COMPLETE")})
	require.True(t, stop)
	assert.Contains(t, reason, "TASK_COMPLETE")
}

func TestStopMessage(t *testing.T) {
	cond := StopMessage("TERMINATE")

	// mentioning the marker mid-sentence does not stop the run
	_, stop := cond.Check(memory.AggregatedMessages{assistantMsg("say TERMINATE when finished")})
	assert.False(t, stop)

	_, stop = cond.Check(memory.AggregatedMessages{assistantMsg("  terminate  ")})
	assert.True(t, stop)
}

func TestFunctionCall(t *testing.T) {
	cond := FunctionCall("approve")

	_, stop := cond.Check(memory.AggregatedMessages{toolResponseMsg("lookup", "ok")})
	assert.False(t, stop)

	reason, stop := cond.Check(memory.AggregatedMessages{toolResponseMsg("approve", "")})
	require.True(t, stop)
	assert.Contains(t, reason, "approve")
}

func TestExternal(t *testing.T) {
	var cond External

	_, stop := cond.Check(nil)
	assert.False(t, stop)

	cond.Set()
	reason, stop := cond.Check(nil)
	require.True(t, stop)
	assert.Equal(t, "external stop requested", reason)

	cond.Reset()
	_, stop = cond.Check(nil)
	assert.False(t, stop)
}

func TestOr(t *testing.T) {
	cond := Or(MaxMessages(10), TextMention("DONE"))

	_, stop := cond.Check(memory.AggregatedMessages{assistantMsg("working")})
	assert.False(t, stop)

	reason, stop := cond.Check(memory.AggregatedMessages{assistantMsg("DONE")})
	require.True(t, stop)
	assert.Contains(t, reason, "DONE")
}

func TestAnd(t *testing.T) {
	cond := And(MaxMessages(2), TextMention("DONE"))

	// text fires first, the message cap has not been reached yet
	_, stop := cond.Check(memory.AggregatedMessages{assistantMsg("DONE")})
	assert.False(t, stop)

	reason, stop := cond.Check(memory.AggregatedMessages{assistantMsg("another")})
	require.True(t, stop)
	assert.Contains(t, reason, "DONE")
	assert.Contains(t, reason, "2")

	cond.Reset()
	_, stop = cond.Check(memory.AggregatedMessages{assistantMsg("fresh")})
	assert.False(t, stop)
}
