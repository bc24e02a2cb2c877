package events

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCodecRoundTrip(t *testing.T) {
	runID := uuid.New()
	turnID := uuid.New()

	tests := []struct {
		name  string
		event Event
	}{
		{"delim", Delim{RunID: runID, TurnID: turnID, Delim: "start"}},
		{"assistant chunk", Chunk[messages.AssistantMessage]{
			RunID:  runID,
			TurnID: turnID,
			Chunk:  messages.AssistantMessage{Content: messages.AssistantContentOrParts{Content: "hel"}},
			Sender: "writer",
		}},
		{"tool call chunk", Chunk[messages.ToolCallMessage]{
			RunID:  runID,
			TurnID: turnID,
			Chunk:  messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "c1", Name: "f", Arguments: `{}`}}},
		}},
		{"user request", Request[messages.UserMessage]{
			RunID:   runID,
			TurnID:  turnID,
			Message: messages.UserMessage{Content: messages.ContentOrParts{Content: "hi"}},
			Sender:  "user",
		}},
		{"tool response request", Request[messages.ToolResponse]{
			RunID:   runID,
			TurnID:  turnID,
			Message: messages.ToolResponse{ToolCallID: "c1", ToolName: "f", Content: "42"},
		}},
		{"assistant response", Response[messages.AssistantMessage]{
			RunID:    runID,
			TurnID:   turnID,
			Response: messages.AssistantMessage{Content: messages.AssistantContentOrParts{Content: "done"}},
			Sender:   "writer",
		}},
		{"tool call response", Response[messages.ToolCallMessage]{
			RunID:    runID,
			TurnID:   turnID,
			Response: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "c2", Name: "g", Arguments: `{"x":1}`}}},
		}},
		{"result", Result[string]{RunID: runID, TurnID: turnID, Result: "final", Sender: "writer"}},
		{"error", Error{RunID: runID, TurnID: turnID, Err: errors.New("boom"), Sender: "openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ToJSON(tt.event)
			require.NoError(t, err)

			decoded, err := FromJSON[string](data)
			require.NoError(t, err)
			assert.IsType(t, tt.event, decoded)
		})
	}
}

func TestFromJSONErrors(t *testing.T) {
	_, err := FromJSON[string]([]byte(`{`))
	require.Error(t, err)

	_, err = FromJSON[string]([]byte(`{"type":"wat"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")

	_, err = FromJSON[string]([]byte(`{"type":"chunk","chunk":{"type":"wat"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payload type")

	_, err = FromJSON[string]([]byte(`{"type":"request","message":{"type":"wat"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request payload type")
}
