// Package termination provides the stop conditions used by group
// conversations. A Condition inspects the messages added since its previous
// check and reports a stop reason once it fires. Conditions keep state across
// checks, Reset prepares them for the next run. They compose with Or and And.
package termination

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/jkmaina/autogen-blueprint/messages"
)

// Condition decides when a conversation should stop. Check receives only the
// messages added since the previous call.
type Condition interface {
	Check(delta memory.AggregatedMessages) (reason string, stop bool)
	Reset()
}

func contentOf(m messages.Message[messages.ModelMessage]) string {
	switch p := m.Payload.(type) {
	case messages.UserMessage:
		return p.Content.Content
	case messages.AssistantMessage:
		return p.Content.Content
	case messages.ToolResponse:
		return p.Content
	default:
		return ""
	}
}

type maxMessages struct {
	limit int
	seen  int
}

// MaxMessages stops the conversation once limit messages have been observed.
func MaxMessages(limit int) Condition {
	return &maxMessages{limit: limit}
}

func (c *maxMessages) Check(delta memory.AggregatedMessages) (string, bool) {
	c.seen += len(delta)
	if c.seen >= c.limit {
		return fmt.Sprintf("maximum number of messages reached (%d)", c.limit), true
	}
	return "", false
}

func (c *maxMessages) Reset() { c.seen = 0 }

type textMention struct {
	text string
}

// TextMention stops the conversation when any message contains the given
// text.
func TextMention(text string) Condition {
	return &textMention{text: text}
}

func (c *textMention) Check(delta memory.AggregatedMessages) (string, bool) {
	for _, msg := range delta {
		if strings.Contains(contentOf(msg), c.text) {
			return fmt.Sprintf("text %q mentioned", c.text), true
		}
	}
	return "", false
}

func (c *textMention) Reset() {}

type stopMessage struct {
	marker string
}

// StopMessage stops the conversation when a message consists solely of the
// given marker. Unlike TextMention this requires the whole message to match,
// so agents can still talk about the marker without ending the run.
func StopMessage(marker string) Condition {
	return &stopMessage{marker: marker}
}

func (c *stopMessage) Check(delta memory.AggregatedMessages) (string, bool) {
	for _, msg := range delta {
		if strings.EqualFold(strings.TrimSpace(contentOf(msg)), c.marker) {
			return fmt.Sprintf("stop message %q received", c.marker), true
		}
	}
	return "", false
}

func (c *stopMessage) Reset() {}

type functionCall struct {
	name string
}

// FunctionCall stops the conversation once the named tool has been executed.
// Useful for approval flows where a reviewer agent calls an approve tool.
func FunctionCall(name string) Condition {
	return &functionCall{name: name}
}

func (c *functionCall) Check(delta memory.AggregatedMessages) (string, bool) {
	for _, msg := range delta {
		if resp, ok := msg.Payload.(messages.ToolResponse); ok && resp.ToolName == c.name {
			return fmt.Sprintf("function %q was executed", c.name), true
		}
	}
	return "", false
}

func (c *functionCall) Reset() {}

// External is a condition flipped from outside the conversation, typically
// from a UI stop button or a deadline watchdog. The zero value is usable.
type External struct {
	stopped atomic.Bool
}

// Set requests the conversation to stop at the next check.
func (c *External) Set() { c.stopped.Store(true) }

func (c *External) Check(memory.AggregatedMessages) (string, bool) {
	if c.stopped.Load() {
		return "external stop requested", true
	}
	return "", false
}

func (c *External) Reset() { c.stopped.Store(false) }

type orCondition struct {
	conditions []Condition
}

// Or fires as soon as any of the given conditions fires.
func Or(conditions ...Condition) Condition {
	return &orCondition{conditions: conditions}
}

func (c *orCondition) Check(delta memory.AggregatedMessages) (string, bool) {
	for _, cond := range c.conditions {
		if reason, stop := cond.Check(delta); stop {
			return reason, true
		}
	}
	return "", false
}

func (c *orCondition) Reset() {
	for _, cond := range c.conditions {
		cond.Reset()
	}
}

type andCondition struct {
	conditions []Condition
	reasons    []string
	fired      []bool
}

// And fires once every one of the given conditions has fired, not
// necessarily during the same check.
func And(conditions ...Condition) Condition {
	return &andCondition{
		conditions: conditions,
		reasons:    make([]string, len(conditions)),
		fired:      make([]bool, len(conditions)),
	}
}

func (c *andCondition) Check(delta memory.AggregatedMessages) (string, bool) {
	allFired := true
	for i, cond := range c.conditions {
		if c.fired[i] {
			continue
		}
		if reason, stop := cond.Check(delta); stop {
			c.fired[i] = true
			c.reasons[i] = reason
		} else {
			allFired = false
		}
	}
	if allFired && len(c.conditions) > 0 {
		return strings.Join(c.reasons, "; "), true
	}
	return "", false
}

func (c *andCondition) Reset() {
	for i, cond := range c.conditions {
		cond.Reset()
		c.fired[i] = false
		c.reasons[i] = ""
	}
}
