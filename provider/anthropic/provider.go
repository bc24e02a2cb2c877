// Package anthropic adapts the Anthropic messages API to the provider
// interface. Instructions travel as the system prompt, tool calls map to
// tool_use blocks.
package anthropic

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/pkg/jsonx"
	"github.com/jkmaina/autogen-blueprint/provider"
)

const defaultMaxTokens = 4096

type Provider struct {
	client anthropic.Client
}

func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client: anthropic.NewClient(options...),
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (anthropic.MessageNewParams, error) {
	msgs := messagesToAnthropic(params.Thread.MessagesIter())

	tools := make([]anthropic.ToolUnionParam, 0, len(params.Tools))
	for _, tool := range params.Tools {
		if tool.Function == nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("tool %s has nil function", tool.Name)
		}

		name, schema := tool.ToNameAndSchema()
		jv, err := jsonx.ToDynamicJSON(schema)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert tool schema: %w", err)
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.ValueOf[constant.Object]().Default(),
			Properties: jv["properties"],
		}
		toolUnion := anthropic.ToolUnionParamOfTool(inputSchema, name)
		if strings.TrimSpace(tool.Description) != "" {
			toolUnion.OfTool.Description = param.NewOpt(tool.Description)
		}
		tools = append(tools, toolUnion)
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model.Name()),
		Messages:  msgs,
		MaxTokens: defaultMaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}
	if strings.TrimSpace(params.Instructions) != "" {
		req.System = []anthropic.TextBlockParam{{
			Text: params.Instructions,
			Type: constant.ValueOf[constant.Text]().Default(),
		}}
	}
	return req, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	req, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, req, &params, events)
		} else {
			p.runOnce(ctx, req, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runOnce(ctx context.Context, req anthropic.MessageNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	message, err := p.client.Messages.New(ctx, req)
	if err != nil {
		events <- provider.Error{
			Err:       err,
			RunID:     command.RunID,
			TurnID:    command.Thread.ID(),
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	events <- messageToStreamEvent(message, command)
}

func (p *Provider) runStream(ctx context.Context, req anthropic.MessageNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	stream := p.client.Messages.NewStreaming(ctx, req)
	defer stream.Close()

	var notFirst bool
	var message anthropic.Message

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			events <- provider.Error{
				Err:       err,
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{Delim: "start"}
		}

		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			events <- provider.Error{
				Err:       err,
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		if event.Type == "content_block_delta" {
			delta := event.AsContentBlockDelta()
			if delta.Delta.Type == "text_delta" {
				events <- provider.Chunk[messages.AssistantMessage]{
					RunID:  command.RunID,
					TurnID: command.Thread.ID(),
					Chunk: messages.AssistantMessage{
						Content: messages.AssistantContentOrParts{Content: delta.Delta.Text},
					},
					Timestamp: strfmt.DateTime(time.Now()),
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		events <- provider.Error{
			Err:       err,
			RunID:     command.RunID,
			TurnID:    command.Thread.ID(),
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	if notFirst {
		events <- provider.Delim{Delim: "end"}
	}
	// the executor reads the final state off the last Response, emit it even
	// when the stream carried no events
	events <- messageToStreamEvent(&message, command)
}

func messagesToAnthropic(iter iter.Seq[messages.Message[messages.ModelMessage]]) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	for message := range iter {
		switch msg := message.Payload.(type) {
		case messages.UserMessage:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content.Content))
			}
			for _, part := range msg.Content.Parts {
				switch part := part.(type) {
				case messages.TextContentPart:
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				case messages.ImageContentPart:
					// the messages API has no URL image source in this
					// shape, pass the URL through as text
					blocks = append(blocks, anthropic.NewTextBlock(part.URL))
				}
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}
		case messages.AssistantMessage:
			if msg.Content.Content != "" {
				result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content.Content)))
			}
		case messages.ToolCallMessage:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolArgs(tc.Arguments), tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		case messages.ToolResponse:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}
	return result
}

// toolArgs decodes a JSON arguments document, falling back to the raw string
// when it does not parse.
func toolArgs(arguments string) any {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return arguments
	}
	return args
}

func messageToStreamEvent(message *anthropic.Message, command *provider.CompletionParams) provider.StreamEvent {
	var text strings.Builder
	var toolCalls []messages.ToolCallData

	for _, block := range message.Content {
		switch blk := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(blk.Text)
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, messages.ToolCallData{
				ID:        blk.ID,
				Name:      blk.Name,
				Arguments: string(blk.Input),
			})
		}
	}

	if len(toolCalls) > 0 {
		return provider.Response[messages.ToolCallMessage]{
			RunID:      command.RunID,
			TurnID:     command.Thread.ID(),
			Checkpoint: command.Thread.Checkpoint(),
			Response:   messages.ToolCallMessage{ToolCalls: toolCalls},
			Timestamp:  strfmt.DateTime(time.Now()),
		}
	}

	return provider.Response[messages.AssistantMessage]{
		RunID:      command.RunID,
		TurnID:     command.Thread.ID(),
		Checkpoint: command.Thread.Checkpoint(),
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: text.String()},
		},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
