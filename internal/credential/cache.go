package credential

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

// operatorKey is the cache key of the operator handle.
const operatorKey = "operator"

// Handle is a provider client bound to exactly one credential.
type Handle struct {
	Key        string
	Source     Source
	Credential Credential
	Provider   provider.Provider
}

// Backend returns the name of the provider backend serving the handle.
func (h *Handle) Backend() string {
	return h.Provider.Name()
}

// HandleCache maps handle keys to handles. A zero max leaves the cache
// effectively unbounded; otherwise the least recently used handle is dropped
// once the cache is full.
type HandleCache struct {
	entries *lru.Cache[string, *Handle]
}

// NewHandleCache returns an empty cache holding at most maxEntries handles.
func NewHandleCache(maxEntries int) *HandleCache {
	if maxEntries <= 0 {
		maxEntries = math.MaxInt
	}
	entries, err := lru.New[string, *Handle](maxEntries)
	if err != nil {
		// lru.New only rejects non-positive sizes.
		panic(err)
	}
	return &HandleCache{entries: entries}
}

func (c *HandleCache) Get(key string) (*Handle, bool) {
	return c.entries.Get(key)
}

// Put stores h under key, replacing any handle already there. Concurrent puts
// for the same key are last-writer-wins.
func (c *HandleCache) Put(key string, h *Handle) {
	c.entries.Add(key, h)
}

func (c *HandleCache) Len() int {
	return c.entries.Len()
}

// Clear drops every handle.
func (c *HandleCache) Clear() {
	c.entries.Purge()
}
