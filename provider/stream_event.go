package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	responseJSON = []byte(`{"type":"response"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

// StreamEvent is the union of events a provider emits during a completion:
// Delim, Chunk, Response and Error.
type StreamEvent interface {
	streamEvent()
}

// Delim marks the start and end of a streamed completion.
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk carries one incremental piece of a streamed response.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) streamEvent() {}

// ChunkToMessage copies the envelope fields of a chunk into a message.
func ChunkToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Chunk[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	if payload, ok := any(src.Chunk).(M); ok {
		dst.Payload = payload
	} else {
		panic(fmt.Sprintf("invalid chunk type: %T", src.Chunk))
	}
}

// Response is the final event of a successful completion. It carries the
// checkpoint of the conversation state that produced it.
type Response[T messages.Response] struct {
	RunID      uuid.UUID         `json:"run_id"`
	TurnID     uuid.UUID         `json:"turn_id"`
	Checkpoint memory.Checkpoint `json:"checkpoint"`
	Response   T                 `json:"response"`
	Timestamp  strfmt.DateTime   `json:"timestamp,omitempty"`
	Meta       gjson.Result      `json:"meta,omitempty"`
}

func (Response[T]) streamEvent() {}

// ResponseToMessage copies the envelope fields of a response into a message.
func ResponseToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Response[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	if payload, ok := any(src.Response).(M); ok {
		dst.Payload = payload
	} else {
		panic(fmt.Sprintf("invalid response type: %T", src.Response))
	}
}

// Error reports a failed completion.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, timestamp: %s, error: %v", e.RunID, e.TurnID, e.Timestamp, e.Err)
}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(delimJSON, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", d.TurnID.String()); err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "delim" {
		return fmt.Errorf("missing or invalid type, expected 'delim'")
	}

	if err := requiredUUID(data, "run_id", &d.RunID); err != nil {
		return err
	}
	if err := requiredUUID(data, "turn_id", &d.TurnID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return fmt.Errorf("missing required field 'delim'")
	}
	d.Delim = delim.String()

	return nil
}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(chunkJSON, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", c.TurnID.String()); err != nil {
		return nil, err
	}

	chunkBytes, err := json.Marshal(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	if result, err = sjson.SetRawBytes(result, "chunk", chunkBytes); err != nil {
		return nil, err
	}

	return finishEventJSON(result, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "chunk" {
		return fmt.Errorf("missing or invalid type, expected 'chunk'")
	}

	if err := requiredUUID(data, "run_id", &c.RunID); err != nil {
		return err
	}
	if err := requiredUUID(data, "turn_id", &c.TurnID); err != nil {
		return err
	}

	chunk := gjson.GetBytes(data, "chunk")
	if !chunk.Exists() {
		return fmt.Errorf("missing required field 'chunk'")
	}
	if err := json.Unmarshal([]byte(chunk.Raw), &c.Chunk); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}

	return parseEventTail(data, &c.Timestamp, &c.Meta)
}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(responseJSON, "run_id", r.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", r.TurnID.String()); err != nil {
		return nil, err
	}

	cpj, err := json.Marshal(r.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if result, err = sjson.SetRawBytes(result, "checkpoint", cpj); err != nil {
		return nil, err
	}

	responseBytes, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	if result, err = sjson.SetRawBytes(result, "response", responseBytes); err != nil {
		return nil, err
	}

	return finishEventJSON(result, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "response" {
		return fmt.Errorf("missing or invalid type, expected 'response'")
	}

	if err := requiredUUID(data, "run_id", &r.RunID); err != nil {
		return err
	}
	if err := requiredUUID(data, "turn_id", &r.TurnID); err != nil {
		return err
	}

	checkpoint := gjson.GetBytes(data, "checkpoint")
	if !checkpoint.Exists() {
		return fmt.Errorf("missing required field 'checkpoint'")
	}
	if err := json.Unmarshal([]byte(checkpoint.Raw), &r.Checkpoint); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	response := gjson.GetBytes(data, "response")
	if !response.Exists() {
		return fmt.Errorf("missing required field 'response'")
	}
	if err := json.Unmarshal([]byte(response.Raw), &r.Response); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	return parseEventTail(data, &r.Timestamp, &r.Meta)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", e.TurnID.String()); err != nil {
		return nil, err
	}
	if e.Err != nil {
		if result, err = sjson.SetBytes(result, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return finishEventJSON(result, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	if err := requiredUUID(data, "run_id", &e.RunID); err != nil {
		return err
	}
	if err := requiredUUID(data, "turn_id", &e.TurnID); err != nil {
		return err
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())

	return parseEventTail(data, &e.Timestamp, &e.Meta)
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

func finishEventJSON(result []byte, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
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

func parseEventTail(data []byte, ts *strfmt.DateTime, meta *gjson.Result) error {
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
