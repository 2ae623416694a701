// Package snapshot reads best-effort context snapshots for planning. A
// snapshot may be stale up to the cache TTL; absence of the store never
// fails a read.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/musubi/internal/client"
	"github.com/harunnryd/musubi/internal/profile"
)

// Snapshot is one person's context state at fetch time.
type Snapshot struct {
	PersonID        string           `json:"person_id"`
	Profile         profile.Document `json:"profile"`
	Dashboard       map[string]any   `json:"dashboard"`
	FetchedAtUnixMS int64            `json:"fetched_at_unix_ms"`
}

// Cache stores snapshots keyed by person. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(personID string) (Snapshot, bool)
	Set(personID string, snap Snapshot)
	Invalidate(personID string)
}

// NopCache disables caching: every read hits the store.
type NopCache struct{}

func (NopCache) Get(string) (Snapshot, bool) { return Snapshot{}, false }
func (NopCache) Set(string, Snapshot)        {}
func (NopCache) Invalidate(string)           {}

type ttlEntry struct {
	snap    Snapshot
	expires time.Time
}

// TTLCache bounds staleness per person. The clock is injectable so tests
// can control expiry deterministically.
type TTLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]ttlEntry
}

func NewTTLCache(ttl time.Duration, now func() time.Time) *TTLCache {
	if now == nil {
		now = time.Now
	}
	return &TTLCache{ttl: ttl, now: now, entries: map[string]ttlEntry{}}
}

func (c *TTLCache) Get(personID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[personID]
	if !ok || c.now().After(entry.expires) {
		delete(c.entries, personID)
		return Snapshot{}, false
	}
	return entry.snap, true
}

func (c *TTLCache) Set(personID string, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[personID] = ttlEntry{snap: snap, expires: c.now().Add(c.ttl)}
}

func (c *TTLCache) Invalidate(personID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, personID)
}

// Reader fetches snapshots from the context store through the cache.
type Reader struct {
	store *client.Service
	cache Cache
}

// NewReader wires a reader. A nil cache reads through.
func NewReader(store *client.Service, cache Cache) *Reader {
	if cache == nil {
		cache = NopCache{}
	}
	return &Reader{store: store, cache: cache}
}

// Read returns the person's snapshot, from cache when fresh. A missing or
// unreachable store yields an empty snapshot, never an error.
func (r *Reader) Read(ctx context.Context, personID string) Snapshot {
	if snap, ok := r.cache.Get(personID); ok {
		return snap
	}

	snap := Snapshot{
		PersonID:        personID,
		Profile:         profile.Document{},
		FetchedAtUnixMS: time.Now().UnixMilli(),
	}
	if r.store == nil || personID == "" {
		return snap
	}

	if res := r.store.Get(ctx, "/profile/"+personID, nil); res.Success() {
		if ok, _ := res.Body["ok"].(bool); ok {
			if doc, ok := res.Body["profile"].(map[string]any); ok {
				snap.Profile = profile.Document(doc)
			}
		}
	}
	if res := r.store.Get(ctx, "/dashboard/"+personID, nil); res.Success() {
		if ok, _ := res.Body["ok"].(bool); ok {
			if dash, ok := res.Body["dashboard"].(map[string]any); ok {
				snap.Dashboard = dash
			}
		}
	}

	r.cache.Set(personID, snap)
	return snap
}

// Invalidate drops the cached snapshot so the next Read is fresh. Called
// after memory ops mutate the profile.
func (r *Reader) Invalidate(personID string) {
	r.cache.Invalidate(personID)
}
