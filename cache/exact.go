// Package cache implements the response caching strategies for model calls:
// exact-key lookup, semantic matching over similar prompts, and a tiered
// memory-over-disk cache with promotion.
package cache

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/alphadose/haxmap"
)

// Key derives the exact-cache key for a prompt/model pair.
func Key(prompt, model string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%x_%s", sum, model)
}

type entry struct {
	value   string
	expires time.Time
}

// Exact caches responses under the hash of the prompt and the model name.
// Entries expire after the configured TTL.
type Exact struct {
	ttl     time.Duration
	now     func() time.Time
	entries *haxmap.Map[string, entry]
}

// NewExact builds an exact-key cache. A zero ttl means entries never expire.
func NewExact(ttl time.Duration) *Exact {
	return &Exact{
		ttl:     ttl,
		now:     time.Now,
		entries: haxmap.New[string, entry](),
	}
}

// Get returns the cached response for the prompt/model pair, when present
// and not expired.
func (c *Exact) Get(prompt, model string) (string, bool) {
	key := Key(prompt, model)
	e, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.entries.Del(key)
		return "", false
	}
	return e.value, true
}

// Set stores the response for the prompt/model pair.
func (c *Exact) Set(prompt, model, response string) {
	e := entry{value: response}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries.Set(Key(prompt, model), e)
}

// Len reports the number of cached entries, expired ones included.
func (c *Exact) Len() int {
	return int(c.entries.Len())
}
