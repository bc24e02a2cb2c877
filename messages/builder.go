package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

// New starts a message builder stamped with the current time. The builder is
// a value type, each With* call returns a copy so partially configured
// builders can be reused safely.
func New() messageBuilder {
	return messageBuilder{timestamp: strfmt.DateTime(time.Now())}
}

type messageBuilder struct {
	sender    string
	timestamp strfmt.DateTime
	metadata  gjson.Result
	_         struct{} // require keyed usage
}

func (b messageBuilder) WithSender(sender string) messageBuilder {
	b.sender = sender
	return b
}

func (b messageBuilder) WithTimestamp(ts strfmt.DateTime) messageBuilder {
	b.timestamp = ts
	return b
}

func (b messageBuilder) WithMetadata(meta gjson.Result) messageBuilder {
	b.metadata = meta
	return b
}

func wrap[T ModelMessage](b messageBuilder, payload T) Message[T] {
	ts := b.timestamp
	if time.Time(ts).IsZero() {
		ts = strfmt.DateTime(time.Now())
	}
	return Message[T]{
		Payload:   payload,
		Sender:    b.sender,
		Timestamp: ts,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) Instructions(content string) Message[InstructionsMessage] {
	return wrap(b, InstructionsMessage{Content: content})
}

func (b messageBuilder) UserPrompt(content string) Message[UserMessage] {
	return wrap(b, UserMessage{Content: ContentOrParts{Content: content}})
}

func (b messageBuilder) UserPromptMultipart(parts ...ContentPart) Message[UserMessage] {
	return wrap(b, UserMessage{Content: ContentOrParts{Parts: parts}})
}

func (b messageBuilder) AssistantMessage(content string) Message[AssistantMessage] {
	return wrap(b, AssistantMessage{Content: AssistantContentOrParts{Content: content}})
}

func (b messageBuilder) AssistantRefusal(refusal string) Message[AssistantMessage] {
	return wrap(b, AssistantMessage{Refusal: refusal})
}

func (b messageBuilder) AssistantMessageMultipart(parts ...AssistantContentPart) Message[AssistantMessage] {
	return wrap(b, AssistantMessage{Content: AssistantContentOrParts{Parts: parts}})
}

func (b messageBuilder) ToolCall(calls []ToolCallData) Message[ToolCallMessage] {
	return wrap(b, ToolCallMessage{ToolCalls: calls})
}

func (b messageBuilder) ToolResponse(callID, toolName, content string) Message[ToolResponse] {
	return wrap(b, ToolResponse{ToolCallID: callID, ToolName: toolName, Content: content})
}

func (b messageBuilder) ToolError(callID, toolName string, err error) Message[Retry] {
	return wrap(b, Retry{Error: err, ToolCallID: callID, ToolName: toolName})
}
