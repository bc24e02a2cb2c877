package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Entry is a single piece of long-lived knowledge that can be injected into
// an agent's instructions.
type Entry struct {
	Content  string       `json:"content"`
	MimeType string       `json:"mime_type,omitempty"`
	Meta     gjson.Result `json:"meta,omitempty"`
}

// Store is long-term memory: content survives across runs and is queried per
// task to enrich the agent's context.
type Store interface {
	Add(ctx context.Context, entry Entry) error
	Query(ctx context.Context, query string, limit int) ([]Entry, error)
	Clear(ctx context.Context) error
}

// ListStore is an in-memory Store that keeps entries in insertion order.
// Queries use case-insensitive substring matching, entries that do not match
// are skipped. With an empty query all entries are returned. When capacity
// is exceeded the oldest entries are evicted.
type ListStore struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

var _ Store = (*ListStore)(nil)

// NewListStore creates a list-backed store. A capacity of zero or less means
// unbounded.
func NewListStore(capacity int) *ListStore {
	return &ListStore{capacity: capacity}
}

func (s *ListStore) Add(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if s.capacity > 0 && len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
	return nil
}

func (s *ListStore) Query(_ context.Context, query string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	var out []Entry
	for _, e := range s.entries {
		if needle != "" && !strings.Contains(strings.ToLower(e.Content), needle) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *ListStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return nil
}

func (s *ListStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
