package articles

import (
	"fmt"
	"weak"
)

// IdentityCache guarantees at most one live Article instance per articleID
// within the coordinating context. Entries are weak: the cache never extends
// an article's lifetime, and a collected entry is replaced on the next
// registration.
//
// Not safe for concurrent use. Only the coordinating goroutine may touch it.
type IdentityCache struct {
	entries map[string]weak.Pointer[Article]
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{
		entries: make(map[string]weak.Pointer[Article]),
	}
}

// Uniqued substitutes already-live instances for candidates that share an
// articleID and registers the rest. No two distinct instances share an
// articleID in the result, and every returned article carries a status.
func (c *IdentityCache) Uniqued(candidates []*Article) []*Article {
	result := make([]*Article, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Status == nil {
			panic(fmt.Sprintf("articles: uniquing article %q without status", candidate.ArticleID))
		}
		if live := c.Get(candidate.ArticleID); live != nil {
			result = append(result, live)
			continue
		}
		c.entries[candidate.ArticleID] = weak.Make(candidate)
		result = append(result, candidate)
	}
	return result
}

// Get returns the live instance for articleID, or nil. Dead entries are
// evicted on the way.
func (c *IdentityCache) Get(articleID string) *Article {
	ptr, ok := c.entries[articleID]
	if !ok {
		return nil
	}
	live := ptr.Value()
	if live == nil {
		delete(c.entries, articleID)
	}
	return live
}

// Sweep drops entries whose articles have been collected and reports how many
// live entries remain.
func (c *IdentityCache) Sweep() int {
	for id, ptr := range c.entries {
		if ptr.Value() == nil {
			delete(c.entries, id)
		}
	}
	return len(c.entries)
}
