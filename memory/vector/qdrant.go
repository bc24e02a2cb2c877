package vector

import (
	"context"
	"fmt"

	"github.com/fogfish/opts"
	"github.com/google/uuid"
	"github.com/jkmaina/autogen-blueprint/memory"
	"github.com/qdrant/go-client/qdrant"
	"github.com/tidwall/gjson"
)

const defaultDimensions = 1536 // text-embedding-3-small

// Store is a memory.Store backed by a qdrant collection. Entries are embedded
// on Add and queries return the most similar entries by cosine distance.
type Store struct {
	embedder   Embedder
	client     *qdrant.Client
	host       string
	port       int
	collection string
	dimensions uint64
	scoreMin   float32

	ready bool
}

var _ memory.Store = (*Store)(nil)

var (
	// WithHost points the store at a qdrant instance. Defaults to localhost.
	WithHost = opts.ForName[Store, string]("host")

	// WithPort sets the qdrant gRPC port. Defaults to 6334.
	WithPort = opts.ForName[Store, int]("port")

	// WithCollection names the qdrant collection. Defaults to
	// "blueprint_memory".
	WithCollection = opts.ForName[Store, string]("collection")

	// WithDimensions sets the vector size of the collection. Must match the
	// embedder's output size.
	WithDimensions = opts.ForName[Store, uint64]("dimensions")

	// WithScoreThreshold drops query results below the given similarity.
	WithScoreThreshold = opts.ForName[Store, float32]("scoreMin")

	// WithClient injects a preconfigured qdrant client.
	WithClient = opts.ForName[Store, *qdrant.Client]("client")
)

// NewStore builds a qdrant-backed store. The collection is created on first
// use when it does not exist yet.
func NewStore(embedder Embedder, options ...opts.Option[Store]) (*Store, error) {
	s := &Store{
		embedder:   embedder,
		host:       "localhost",
		port:       6334,
		collection: "blueprint_memory",
		dimensions: defaultDimensions,
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}

	if s.client == nil {
		client, err := qdrant.NewClient(&qdrant.Config{Host: s.host, Port: s.port})
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", s.host, s.port, err)
		}
		s.client = client
	}

	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	if s.ready {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", s.collection, err)
		}
	}

	s.ready = true
	return nil
}

func (s *Store) Add(ctx context.Context, entry memory.Entry) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	embedding, err := s.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return err
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: qdrant.NewValueMap(entryPayload(entry)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, query string, limit int) ([]memory.Entry, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if s.scoreMin > 0 {
		req.ScoreThreshold = qdrant.PtrOf(s.scoreMin)
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.collection, err)
	}

	entries := make([]memory.Entry, 0, len(points))
	for _, point := range points {
		entries = append(entries, payloadEntry(point.Payload))
	}
	return entries, nil
}

// Clear drops the collection. It is recreated lazily on the next Add or
// Query.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("dropping collection %s: %w", s.collection, err)
	}
	s.ready = false
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func entryPayload(entry memory.Entry) map[string]any {
	payload := map[string]any{"content": entry.Content}
	if entry.MimeType != "" {
		payload["mime_type"] = entry.MimeType
	}
	if entry.Meta.Exists() {
		payload["meta"] = entry.Meta.Raw
	}
	return payload
}

func payloadEntry(payload map[string]*qdrant.Value) memory.Entry {
	entry := memory.Entry{
		Content:  payload["content"].GetStringValue(),
		MimeType: payload["mime_type"].GetStringValue(),
	}
	if raw := payload["meta"].GetStringValue(); raw != "" {
		entry.Meta = gjson.Parse(raw)
	}
	return entry
}
