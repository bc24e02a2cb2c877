package api

import "github.com/jkmaina/autogen-blueprint/provider"

// Model pairs a model name with the provider that serves it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
