// Package types contains shared value types that flow between agents, tools
// and orchestration patterns.
package types

import "maps"

// ContextVars carries request-scoped values that are injected into tool
// invocations. Tools declare a ContextVars parameter to receive the
// current run's variables without them being visible to the model.
type ContextVars map[string]any

// Clone returns a shallow copy of the context variables.
func (cv ContextVars) Clone() ContextVars {
	if cv == nil {
		return nil
	}
	return maps.Clone(cv)
}

// Get returns the value for key, or nil when absent.
func (cv ContextVars) Get(key string) any {
	if cv == nil {
		return nil
	}
	return cv[key]
}

// String returns the value for key as a string when it is one.
func (cv ContextVars) String(key string) (string, bool) {
	v, ok := cv[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
