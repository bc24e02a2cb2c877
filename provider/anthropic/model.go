package anthropic

import (
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/provider/models"
)

func Claude37Sonnet(opts ...option.RequestOption) api.Model {
	return Model(anthropic.ModelClaude3_7SonnetLatest, opts...)
}

func Claude35Haiku(opts ...option.RequestOption) api.Model {
	return Model(anthropic.ModelClaude3_5HaikuLatest, opts...)
}

// Model returns the api.Model for the given Claude model name, creating and
// registering it on first use.
func Model(name anthropic.Model, opts ...option.RequestOption) api.Model {
	return models.GetOrAdd(string(name), func() api.Model {
		return &model{
			name: string(name),
			opts: opts,
		}
	})
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
