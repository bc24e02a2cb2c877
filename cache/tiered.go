package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
)

// Tiered layers a fast in-memory cache over a JSON file on disk. Each tier
// has its own TTL; entries found only on disk are promoted back into memory.
type Tiered struct {
	memoryTTL time.Duration
	diskTTL   time.Duration

	path string
	now  func() time.Time

	mu     sync.Mutex
	memory map[string]diskEntry
	disk   map[string]diskEntry
}

type diskEntry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

func (e diskEntry) expired(now time.Time) bool {
	return now.After(e.Expires)
}

var (
	// WithMemoryTTL sets the lifetime of entries in the memory tier.
	WithMemoryTTL = opts.ForName[Tiered, time.Duration]("memoryTTL")

	// WithDiskTTL sets the lifetime of entries in the disk tier.
	WithDiskTTL = opts.ForName[Tiered, time.Duration]("diskTTL")
)

// NewTiered builds a tiered cache persisted at path. Defaults: one hour in
// memory, one day on disk. An existing cache file is loaded, a missing one
// is fine.
func NewTiered(path string, options ...opts.Option[Tiered]) (*Tiered, error) {
	c := &Tiered{
		memoryTTL: time.Hour,
		diskTTL:   24 * time.Hour,
		path:      path,
		now:       time.Now,
		memory:    make(map[string]diskEntry),
		disk:      make(map[string]diskEntry),
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}

	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Tiered) load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading disk cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.disk); err != nil {
		return fmt.Errorf("parsing disk cache: %w", err)
	}
	return nil
}

// persist writes the disk tier. Callers must hold the mutex.
func (c *Tiered) persist() error {
	data, err := json.Marshal(c.disk)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Get checks the memory tier first and falls through to disk. A disk hit is
// promoted back into memory with a fresh memory TTL.
func (c *Tiered) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.memory[key]; ok {
		if !e.expired(now) {
			return e.Value, true
		}
		delete(c.memory, key)
	}

	e, ok := c.disk[key]
	if !ok {
		return "", false
	}
	if e.expired(now) {
		delete(c.disk, key)
		// best effort, the entry is gone from memory either way
		_ = c.persist()
		return "", false
	}

	c.memory[key] = diskEntry{Value: e.Value, Expires: now.Add(c.memoryTTL)}
	return e.Value, true
}

// Set stores the value in both tiers and persists the disk tier.
func (c *Tiered) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.memory[key] = diskEntry{Value: value, Expires: now.Add(c.memoryTTL)}
	c.disk[key] = diskEntry{Value: value, Expires: now.Add(c.diskTTL)}
	return c.persist()
}
