package events

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/tidwall/gjson"
)

// ToJSON serializes an event for transport over a broker.
func ToJSON(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// FromJSON decodes an event that went over the wire. The outer type marker
// picks the event shape, the payload's own type marker picks the concrete
// message type. T is the run's result type, only used for result events.
func FromJSON[T any](data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	switch eventType := gjson.GetBytes(data, "type").String(); eventType {
	case "delim":
		var d Delim
		return d, json.Unmarshal(data, &d)
	case "chunk":
		return decodeResponse[Chunk[messages.AssistantMessage], Chunk[messages.ToolCallMessage]](data, "chunk.type")
	case "request":
		switch payloadType := gjson.GetBytes(data, "message.type").String(); payloadType {
		case "user":
			var r Request[messages.UserMessage]
			return r, json.Unmarshal(data, &r)
		case "tool_response":
			var r Request[messages.ToolResponse]
			return r, json.Unmarshal(data, &r)
		default:
			return nil, fmt.Errorf("unknown request payload type: %q", payloadType)
		}
	case "response":
		return decodeResponse[Response[messages.AssistantMessage], Response[messages.ToolCallMessage]](data, "response.type")
	case "result":
		var r Result[T]
		return r, json.Unmarshal(data, &r)
	case "error":
		var e Error
		return e, json.Unmarshal(data, &e)
	default:
		return nil, fmt.Errorf("unknown event type: %q", eventType)
	}
}

// decodeResponse picks between the assistant and tool call flavor of a chunk
// or response event.
func decodeResponse[A, T Event](data []byte, path string) (Event, error) {
	switch payloadType := gjson.GetBytes(data, path).String(); payloadType {
	case "assistant":
		var event A
		return event, json.Unmarshal(data, &event)
	case "tool_call":
		var event T
		return event, json.Unmarshal(data, &event)
	default:
		return nil, fmt.Errorf("unknown payload type: %q", payloadType)
	}
}
