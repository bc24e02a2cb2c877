// Package executor runs agents. A RunCommand captures everything one run
// needs, the executor drives the provider stream, dispatches tool calls and
// delivers the final answer through a promise. The local executor keeps the
// whole loop in process, the temporal executor splits completions and tool
// calls into workflow activities.
package executor
