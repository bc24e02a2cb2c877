// Package vector provides long-term memory backed by a vector database.
// Entries are embedded on write and retrieved by semantic similarity, which
// is what retrieval-augmented agents query per task.
package vector

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder converts text into a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder on text-embedding-3-small. The API key
// comes from the environment unless overridden through request options.
func NewOpenAIEmbedder(options ...option.RequestOption) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(options...),
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}
}

// WithModel switches the embedding model. The store's dimensions must match
// the model's output size.
func (e *OpenAIEmbedder) WithModel(model openai.EmbeddingModel) *OpenAIEmbedder {
	e.model = model
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](
			openai.EmbeddingNewParamsInputArrayOfStrings([]string{text}),
		),
		Model: openai.F(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("embedding response for model %s is empty", e.model)
	}

	return toFloat32(res.Data[0].Embedding), nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
