package cache

import (
	"strings"
	"sync"
)

// Jaccard computes the similarity of two texts as the Jaccard index of their
// lowercase word sets. Identical texts score 1, texts without shared words 0.
func Jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

type semanticEntry struct {
	prompt   string
	response string
}

// Semantic returns cached responses for prompts that are similar enough to a
// previously seen prompt, so reworded questions still hit the cache.
type Semantic struct {
	threshold float64

	mu      sync.RWMutex
	entries []semanticEntry
}

// NewSemantic builds a semantic cache that matches prompts at or above the
// given similarity threshold (0..1).
func NewSemantic(threshold float64) *Semantic {
	return &Semantic{threshold: threshold}
}

// Get returns the response of the most similar cached prompt at or above the
// threshold, together with the similarity score.
func (c *Semantic) Get(prompt string) (response string, similarity float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := -1
	bestScore := 0.0
	for i, e := range c.entries {
		score := Jaccard(prompt, e.prompt)
		if score >= c.threshold && score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return "", 0, false
	}
	return c.entries[best].response, bestScore, true
}

// Set stores the response under the original prompt text.
func (c *Semantic) Set(prompt, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.entries {
		if e.prompt == prompt {
			c.entries[i].response = response
			return
		}
	}
	c.entries = append(c.entries, semanticEntry{prompt: prompt, response: response})
}
