package vector

import (
	"testing"

	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEntryPayloadRoundTrip(t *testing.T) {
	entry := memory.Entry{
		Content:  "the warranty covers two years",
		MimeType: "text/plain",
		Meta:     gjson.Parse(`{"source":"handbook"}`),
	}

	payload := qdrant.NewValueMap(entryPayload(entry))
	got := payloadEntry(payload)

	assert.Equal(t, entry.Content, got.Content)
	assert.Equal(t, entry.MimeType, got.MimeType)
	assert.Equal(t, "handbook", got.Meta.Get("source").String())
}

func TestEntryPayloadOmitsEmptyFields(t *testing.T) {
	payload := entryPayload(memory.Entry{Content: "bare"})

	assert.Equal(t, "bare", payload["content"])
	assert.NotContains(t, payload, "mime_type")
	assert.NotContains(t, payload, "meta")
}

func TestPayloadEntryToleratesMissingKeys(t *testing.T) {
	got := payloadEntry(qdrant.NewValueMap(map[string]any{"content": "only content"}))

	assert.Equal(t, "only content", got.Content)
	assert.Empty(t, got.MimeType)
	assert.False(t, got.Meta.Exists())
}

func TestNewStoreRequiresEmbedder(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder")
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2}, toFloat32([]float64{0.5, -1, 2}))
	assert.Empty(t, toFloat32(nil))
}
