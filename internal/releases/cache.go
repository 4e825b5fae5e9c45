package releases

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache resolves the release list once and replays it to every later caller.
// The primary source is tried first; any failure falls through to the fallback.
// If both fail the resolved list is empty. Clear forces the next List to refetch.
type Cache struct {
	primary  Source
	fallback Source

	group singleflight.Group

	mu       sync.RWMutex
	releases []Release
	resolved bool
	gen      uint64 // bumped by Clear; fetches from an older generation are not stored
}

// NewCache creates a Cache. fallback may be nil.
func NewCache(primary, fallback Source) *Cache {
	return &Cache{primary: primary, fallback: fallback}
}

// List returns the cached releases, fetching them on first use.
// Concurrent first callers share a single fetch. List never returns an error;
// a context cancelled before resolution yields an empty, uncached result.
func (c *Cache) List(ctx context.Context) []Release {
	c.mu.RLock()
	if c.resolved {
		out := c.releases
		c.mu.RUnlock()
		return out
	}
	gen := c.gen
	c.mu.RUnlock()

	ch := c.group.DoChan("releases-"+strconv.FormatUint(gen, 10), func() (any, error) {
		// Detach from the first caller's cancellation so one abandoned
		// request does not poison the shared result.
		rels := c.resolve(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return rels, nil
		}
		if !c.resolved {
			c.releases = rels
			c.resolved = true
		}
		return c.releases, nil
	})

	select {
	case res := <-ch:
		return res.Val.([]Release)
	case <-ctx.Done():
		return []Release{}
	}
}

// Latest returns the release marked IsLatest, if any.
func (c *Cache) Latest(ctx context.Context) (Release, bool) {
	for _, r := range c.List(ctx) {
		if r.IsLatest {
			return r, true
		}
	}
	return Release{}, false
}

// Find returns the release whose tag matches version, ignoring a leading "v".
// "latest" resolves through Latest.
func (c *Cache) Find(ctx context.Context, version string) (Release, bool) {
	if version == "latest" {
		return c.Latest(ctx)
	}
	want := strings.TrimPrefix(version, "v")
	for _, r := range c.List(ctx) {
		if strings.TrimPrefix(r.Version, "v") == want {
			return r, true
		}
	}
	return Release{}, false
}

// Clear drops the cached list. A fetch already in flight still answers its
// own callers but is not cached.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.releases = nil
	c.resolved = false
	c.gen++
	c.mu.Unlock()
}

func (c *Cache) resolve(ctx context.Context) []Release {
	if c.primary != nil {
		raw, err := c.primary.Fetch(ctx)
		if err == nil {
			return Derive(raw)
		}
		slog.Warn("primary release source failed, using fallback", "error", err)
	}
	if c.fallback != nil {
		raw, err := c.fallback.Fetch(ctx)
		if err == nil {
			return Derive(raw)
		}
		slog.Warn("fallback release source failed", "error", err)
	}
	return []Release{}
}
