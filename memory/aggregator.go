// Package memory tracks the conversational state of a run. The Aggregator is
// the short-term memory of the run loop: it collects the messages of every
// turn, supports fork/join so a turn can proceed on a private copy, and
// snapshots into checkpoints that survive process boundaries.
package memory

import (
	"iter"
	"slices"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/messages"
	"github.com/jkmaina/autogen-blueprint/pkg/uuidx"
)

// AggregatedMessages is an ordered collection of type-erased messages.
type AggregatedMessages []messages.Message[messages.ModelMessage]

func (a AggregatedMessages) Len() int {
	return len(a)
}

// New creates an empty aggregator with a fresh identity.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(AggregatedMessages, 0),
		usage:    Usage{},
	}
}

// Aggregator holds the messages and usage statistics of a run. Forked
// aggregators remember how many messages existed at fork time so that a
// later Join only appends the messages added since.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int
	usage    Usage
}

func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen returns the number of messages added since the fork point.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of all messages, modifications to the returned
// slice do not affect the aggregator.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

// MessagesIter iterates over the messages without copying them.
func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

func eraseType[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// AddMessage appends any message payload. Prefer the typed Add* methods in
// application code.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(eraseType(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

func (a *Aggregator) Usage() Usage {
	return a.usage
}

func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Fork returns a new aggregator seeded with a copy of the current messages.
// The fork records the current length so Join can tell old messages from new
// ones.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages that were added to b after it was forked and
// merges b's usage counters.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}

// Checkpoint snapshots the aggregator. The snapshot is immutable and can be
// serialized, shipped across a process boundary and merged into another
// aggregator.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		usage:    a.usage,
		initLen:  a.initLen,
	}
}

// Checkpoint is a frozen snapshot of an aggregator's state.
type Checkpoint struct {
	id       uuid.UUID
	messages AggregatedMessages
	usage    Usage
	initLen  int
}

func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

func (c *Checkpoint) Messages() AggregatedMessages {
	return slices.Clone(c.messages)
}

func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto applies the snapshot to another aggregator: messages added after
// the snapshot's fork point are appended and the usage counters combined.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	other.usage.AddUsage(&c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string             `json:"id"`
		Messages AggregatedMessages `json:"messages"`
		Usage    Usage              `json:"usage"`
		InitLen  int                `json:"init_len"`
	}{
		ID:       c.id.String(),
		Messages: c.messages,
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID       string             `json:"id"`
		Messages AggregatedMessages `json:"messages"`
		Usage    Usage              `json:"usage"`
		InitLen  int                `json:"init_len"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
