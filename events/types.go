package events

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	requestJSON  = []byte(`{"type":"request"}`)
	responseJSON = []byte(`{"type":"response"}`)
	resultJSON   = []byte(`{"type":"result"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// Event is the union of everything that can travel over a run's topic:
// Delim, Chunk, Request, Response, Result and Error.
type Event interface {
	event()
}

// FromStreamEvent converts a provider stream event into a published event,
// stamping the sender onto it. The checkpoint a provider response carries is
// dropped here, it belongs to the executor, not to subscribers.
func FromStreamEvent(e provider.StreamEvent, sender string) Event {
	switch event := e.(type) {
	case provider.Delim:
		return Delim(event)
	case provider.Chunk[messages.ToolCallMessage]:
		return Chunk[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Chunk:     event.Chunk,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Chunk[messages.AssistantMessage]:
		return Chunk[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Chunk:     event.Chunk,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Response[messages.ToolCallMessage]:
		return Response[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Response:  event.Response,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Response[messages.AssistantMessage]:
		return Response[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Response:  event.Response,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	case provider.Error:
		return Error{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Err:       event.Err,
			Sender:    sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		}
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}

// Delim marks a stream boundary. Subscribers use it for display control,
// hooks never see it.
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) event() {}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(delimJSON, d.RunID, d.TurnID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "delim"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &d.RunID, &d.TurnID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()

	return nil
}

// Chunk is one incremental fragment of a streamed model response.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) event() {}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(chunkJSON, c.RunID, c.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "chunk", c.Chunk); err != nil {
		return nil, err
	}
	return marshalTail(result, c.Sender, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "chunk"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &c.RunID, &c.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "chunk", &c.Chunk); err != nil {
		return err
	}
	return unmarshalTail(data, &c.Sender, &c.Timestamp, &c.Meta)
}

// Request carries an incoming message, a user prompt or a tool response
// heading back to the model.
type Request[T messages.Request] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Message   T               `json:"message"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Request[T]) event() {}

func (r Request[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(requestJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "message", r.Message); err != nil {
		return nil, err
	}
	return marshalTail(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Request[T]) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "request"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "message", &r.Message); err != nil {
		return err
	}
	return unmarshalTail(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Response is a complete model response, either assistant content or a tool
// call message.
type Response[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Response  T               `json:"response"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Response[T]) event() {}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(responseJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "response", r.Response); err != nil {
		return nil, err
	}
	return marshalTail(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "response"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "response", &r.Response); err != nil {
		return err
	}
	return unmarshalTail(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Result is the terminal event of a run, carrying the structured value the
// run was asked to produce.
type Result[T any] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Result    T               `json:"result"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Result[T]) event() {}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(resultJSON, r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	if result, err = marshalPayload(result, "result", r.Result); err != nil {
		return nil, err
	}
	return marshalTail(result, r.Sender, r.Timestamp, r.Meta)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "result"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &r.RunID, &r.TurnID); err != nil {
		return err
	}
	if err := unmarshalPayload(data, "result", &r.Result); err != nil {
		return err
	}
	return unmarshalTail(data, &r.Sender, &r.Timestamp, &r.Meta)
}

// Error reports a failure during the run.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) event() {}

func (e Error) Error() string {
	errStr := "<nil>"
	if e.Err != nil {
		errStr = e.Err.Error()
	}
	return fmt.Sprintf("%s run_id=%s turn_id=%s", errStr, e.RunID, e.TurnID)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := marshalEnvelope(errorJSON, e.RunID, e.TurnID)
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		if result, err = sjson.SetBytes(result, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return marshalTail(result, e.Sender, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkEventType(data, "error"); err != nil {
		return err
	}
	if err := unmarshalEnvelope(data, &e.RunID, &e.TurnID); err != nil {
		return err
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	return unmarshalTail(data, &e.Sender, &e.Timestamp, &e.Meta)
}

func checkEventType(data []byte, want string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != want {
		return fmt.Errorf("missing or invalid type, expected '%s'", want)
	}
	return nil
}

func marshalEnvelope(base []byte, runID, turnID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes(base, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "turn_id", turnID.String())
}

func unmarshalEnvelope(data []byte, runID, turnID *uuid.UUID) error {
	if err := requiredUUID(data, "run_id", runID); err != nil {
		return err
	}
	return requiredUUID(data, "turn_id", turnID)
}

func requiredUUID(data []byte, field string, dst *uuid.UUID) error {
	val := gjson.GetBytes(data, field)
	if !val.Exists() {
		return fmt.Errorf("missing required field '%s'", field)
	}
	if err := dst.UnmarshalText([]byte(val.String())); err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	return nil
}

func marshalPayload(result []byte, field string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	return sjson.SetRawBytes(result, field, payload)
}

func unmarshalPayload(data []byte, field string, dst any) error {
	val := gjson.GetBytes(data, field)
	if !val.Exists() {
		return fmt.Errorf("missing required field '%s'", field)
	}
	if err := json.Unmarshal([]byte(val.Raw), dst); err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	return nil
}

func marshalTail(result []byte, sender string, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if sender != "" {
		if result, err = sjson.SetBytes(result, "sender", sender); err != nil {
			return nil, err
		}
	}
	if !ts.IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func unmarshalTail(data []byte, sender *string, ts *strfmt.DateTime, meta *gjson.Result) error {
	if s := gjson.GetBytes(data, "sender"); s.Exists() {
		*sender = s.String()
	}
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := ts.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if m := gjson.GetBytes(data, "meta"); m.Exists() {
		*meta = m
	}
	return nil
}
