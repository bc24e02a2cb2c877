// Package messages defines the conversation envelope and payload types that
// flow between users, models and tools.
//
// Every payload travels inside a Message[T] envelope that carries the run and
// turn identifiers, the sender, a timestamp and optional metadata. Payloads
// serialize to a flat JSON object with a "type" discriminator so that a
// stream of mixed message kinds can be decoded without an outer wrapper.
package messages
