package messages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage is implemented by every payload that can travel inside a
// Message envelope.
type ModelMessage interface {
	message()
}

// Request marks payloads that are sent to a model.
type Request interface {
	request()
}

// Response marks payloads that are produced by a model.
type Response interface {
	response()
}

// Message is the envelope around a conversation payload. RunID groups all
// messages of one task execution, TurnID groups the messages of a single
// model round-trip within it.
//
// The envelope serializes flat: the payload's fields and "type" discriminator
// share the top-level object with run_id, turn_id, sender, timestamp and
// meta.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Payload   T               `json:"-"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (m Message[T]) MarshalJSON() ([]byte, error) {
	buf, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	if buf, err = sjson.SetBytes(buf, "run_id", m.RunID.String()); err != nil {
		return nil, err
	}
	if buf, err = sjson.SetBytes(buf, "turn_id", m.TurnID.String()); err != nil {
		return nil, err
	}
	if m.Sender != "" {
		if buf, err = sjson.SetBytes(buf, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if buf, err = sjson.SetBytes(buf, "timestamp", m.Timestamp.String()); err != nil {
		return nil, err
	}
	if m.Meta.Raw != "" {
		if buf, err = sjson.SetRawBytes(buf, "meta", []byte(m.Meta.Raw)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)

	tpe := jv.Get("type")
	if !tpe.Exists() {
		return errors.New("missing required field 'type'")
	}

	var payload ModelMessage
	switch tpe.String() {
	case "instructions":
		var p InstructionsMessage
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	case "user":
		var p UserMessage
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	case "assistant":
		var p AssistantMessage
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	case "tool_call":
		var p ToolCallMessage
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	case "tool_response":
		var p ToolResponse
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	case "retry":
		var p Retry
		if err := p.UnmarshalJSON(data); err != nil {
			return err
		}
		payload = p
	default:
		return fmt.Errorf("unknown message type: %s", tpe.String())
	}

	pv, ok := payload.(T)
	if !ok {
		return fmt.Errorf("message type %q does not match the payload type %T", tpe.String(), m.Payload)
	}
	m.Payload = pv

	if rid := jv.Get("run_id"); rid.Exists() {
		id, err := uuid.Parse(rid.String())
		if err != nil {
			return fmt.Errorf("invalid run_id: %w", err)
		}
		m.RunID = id
	}
	if tid := jv.Get("turn_id"); tid.Exists() {
		id, err := uuid.Parse(tid.String())
		if err != nil {
			return fmt.Errorf("invalid turn_id: %w", err)
		}
		m.TurnID = id
	}
	m.Sender = jv.Get("sender").String()
	if ts := jv.Get("timestamp"); ts.Exists() {
		parsed, err := strfmt.ParseDateTime(ts.String())
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		m.Timestamp = parsed
	}
	if meta := jv.Get("meta"); meta.Exists() {
		m.Meta = meta
	}
	return nil
}

// InstructionsMessage carries the rendered system instructions for an agent.
type InstructionsMessage struct {
	Content string   `json:"content"`
	_       struct{} // require keyed usage
}

func (InstructionsMessage) message() {}

var instructionsJSON = []byte(`{"type":"instructions"}`)

func (i InstructionsMessage) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(instructionsJSON, "content", i.Content)
}

func (i *InstructionsMessage) UnmarshalJSON(data []byte) error {
	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	i.Content = content.String()
	return nil
}

// UserMessage is input provided by a user or an upstream orchestration step.
type UserMessage struct {
	Content ContentOrParts `json:"content"`
	_       struct{}       // require keyed usage
}

func (UserMessage) message() {}
func (UserMessage) request() {}

var userJSON = []byte(`{"type":"user"}`)

func (u UserMessage) MarshalJSON() ([]byte, error) {
	content, err := u.Content.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(userJSON, "content", content)
}

func (u *UserMessage) UnmarshalJSON(data []byte) error {
	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	return u.Content.UnmarshalJSON([]byte(content.Raw))
}

// AssistantMessage is a model reply. Either Content or Refusal is set, never
// both.
type AssistantMessage struct {
	Content AssistantContentOrParts `json:"content"`
	Refusal string                  `json:"refusal,omitempty"`
	_       struct{}                // require keyed usage
}

func (AssistantMessage) message()  {}
func (AssistantMessage) response() {}

var assistantJSON = []byte(`{"type":"assistant"}`)

func (a AssistantMessage) MarshalJSON() ([]byte, error) {
	buf := assistantJSON
	content, err := a.Content.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if string(content) != string(jsonNull) {
		if buf, err = sjson.SetRawBytes(buf, "content", content); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(a.Refusal) != "" {
		if buf, err = sjson.SetBytes(buf, "refusal", a.Refusal); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (a *AssistantMessage) UnmarshalJSON(data []byte) error {
	content := gjson.GetBytes(data, "content")
	refusal := gjson.GetBytes(data, "refusal")
	if content.Exists() && refusal.Exists() {
		return errors.New("both 'content' and 'refusal' cannot be present")
	}
	if refusal.Exists() {
		a.Refusal = refusal.String()
		return nil
	}
	if content.Exists() {
		return a.Content.UnmarshalJSON([]byte(content.Raw))
	}
	return nil
}

// ToolCallData describes a single function invocation requested by the model.
type ToolCallData struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Arguments string   `json:"arguments"`
	_         struct{} // require keyed usage
}

// CallTool builds a ToolCallData from a parsed arguments document.
func CallTool(id, name string, args gjson.Result) ToolCallData {
	return ToolCallData{ID: id, Name: name, Arguments: args.Raw}
}

// ToolCallMessage is a model response that requests one or more tool
// invocations instead of answering directly.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
	_         struct{}       // require keyed usage
}

func (ToolCallMessage) message()  {}
func (ToolCallMessage) response() {}

var toolCallJSON = []byte(`{"type":"tool_call"}`)

func (t ToolCallMessage) MarshalJSON() ([]byte, error) {
	calls, err := json.Marshal(t.ToolCalls)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(toolCallJSON, "tool_calls", calls)
}

func (t *ToolCallMessage) UnmarshalJSON(data []byte) error {
	calls := gjson.GetBytes(data, "tool_calls")
	if !calls.Exists() {
		return errors.New("missing required field 'tool_calls'")
	}
	if !calls.IsArray() {
		return errors.New("'tool_calls' must be an array")
	}
	return json.Unmarshal([]byte(calls.Raw), &t.ToolCalls)
}

// ToolResponse carries the result of a tool invocation back to the model.
type ToolResponse struct {
	ToolName   string   `json:"tool_name"`
	ToolCallID string   `json:"tool_call_id"`
	Content    string   `json:"content"`
	_          struct{} // require keyed usage
}

func (ToolResponse) message() {}
func (ToolResponse) request() {}

var toolResponseJSON = []byte(`{"type":"tool_response"}`)

func (t ToolResponse) MarshalJSON() ([]byte, error) {
	buf, err := sjson.SetBytes(toolResponseJSON, "tool_name", t.ToolName)
	if err != nil {
		return nil, err
	}
	if buf, err = sjson.SetBytes(buf, "tool_call_id", t.ToolCallID); err != nil {
		return nil, err
	}
	return sjson.SetBytes(buf, "content", t.Content)
}

func (t *ToolResponse) UnmarshalJSON(data []byte) error {
	name := gjson.GetBytes(data, "tool_name")
	if !name.Exists() {
		return errors.New("missing required field 'tool_name'")
	}
	callID := gjson.GetBytes(data, "tool_call_id")
	if !callID.Exists() {
		return errors.New("missing required field 'tool_call_id'")
	}
	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	t.ToolName = name.String()
	t.ToolCallID = callID.String()
	t.Content = content.String()
	return nil
}

// Retry tells the model that a tool invocation failed and should be
// reconsidered. The error text becomes part of the conversation.
type Retry struct {
	Error      error    `json:"error"`
	ToolName   string   `json:"tool_name,omitempty"`
	ToolCallID string   `json:"tool_call_id,omitempty"`
	_          struct{} // require keyed usage
}

func (Retry) message() {}
func (Retry) request() {}

var retryJSON = []byte(`{"type":"retry"}`)

func (r Retry) MarshalJSON() ([]byte, error) {
	var errText string
	if r.Error != nil {
		errText = r.Error.Error()
	}
	buf, err := sjson.SetBytes(retryJSON, "error", errText)
	if err != nil {
		return nil, err
	}
	if r.ToolName != "" {
		if buf, err = sjson.SetBytes(buf, "tool_name", r.ToolName); err != nil {
			return nil, err
		}
	}
	if r.ToolCallID != "" {
		if buf, err = sjson.SetBytes(buf, "tool_call_id", r.ToolCallID); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (r *Retry) UnmarshalJSON(data []byte) error {
	errField := gjson.GetBytes(data, "error")
	if !errField.Exists() {
		return errors.New("missing required field 'error'")
	}
	r.Error = errors.New(errField.String())
	r.ToolName = gjson.GetBytes(data, "tool_name").String()
	r.ToolCallID = gjson.GetBytes(data, "tool_call_id").String()
	return nil
}
