package identity

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"resto-vision/internal/domain/vision"
)

// maxCachedEmbeddings bounds the per-entry ring buffer of recent embeddings.
const maxCachedEmbeddings = 5

type cacheEntry struct {
	lastSeen     time.Time
	visitCount   int
	customerType vision.CustomerType
	embeddings   [][]float64
	avgEmbedding []float64
}

// appendEmbedding pushes a new embedding into the ring buffer, drops the
// oldest past capacity, and recomputes the average from the buffer. The
// recompute is authoritative; there is no incremental blend.
func (e *cacheEntry) appendEmbedding(embedding []float64) {
	e.embeddings = append(e.embeddings, embedding)
	if len(e.embeddings) > maxCachedEmbeddings {
		e.embeddings = e.embeddings[1:]
	}
	avg := make([]float64, len(embedding))
	for _, emb := range e.embeddings {
		floats.Add(avg, emb)
	}
	floats.Scale(1/float64(len(e.embeddings)), avg)
	e.avgEmbedding = avg
}

// CacheHit is the identity data reused from a cache match.
type CacheHit struct {
	Hash         string
	VisitCount   int
	CustomerType vision.CustomerType
}

// FaceCache deduplicates faces observed repeatedly within a short window so
// repeated sightings do not hammer the identity store. Entries are keyed by
// embedding hash but matched primarily by cosine similarity against the
// entry's average embedding. All read-modify-write sequences hold the single
// mutex end to end; concurrent camera ticks observing the same face must not
// lose updates.
type FaceCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	matchWindow     time.Duration
	ttl             time.Duration
	similarityFloor float64
}

func NewFaceCache(matchWindow, ttl time.Duration, similarityFloor float64) *FaceCache {
	return &FaceCache{
		entries:         make(map[string]*cacheEntry),
		matchWindow:     matchWindow,
		ttl:             ttl,
		similarityFloor: similarityFloor,
	}
}

// Observe probes the cache for the given face. It first scans entries seen
// within the match window for the best cosine similarity above the floor,
// then falls back to an exact-hash lookup. On a hit the entry is refreshed
// (timestamp, ring buffer, recomputed average) and its identity data reused.
// The linear scan is bounded by the TTL purging idle entries.
func (c *FaceCache) Observe(hash string, embedding []float64, now time.Time) (CacheHit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bestSim := c.similarityFloor
	var bestHash string
	var bestEntry *cacheEntry
	for h, entry := range c.entries {
		if now.Sub(entry.lastSeen) >= c.matchWindow {
			continue
		}
		if len(entry.avgEmbedding) != len(embedding) {
			continue
		}
		if sim := floats.Dot(embedding, entry.avgEmbedding); sim > bestSim {
			bestSim = sim
			bestHash = h
			bestEntry = entry
		}
	}

	if bestEntry == nil {
		entry, ok := c.entries[hash]
		if !ok || now.Sub(entry.lastSeen) >= c.matchWindow {
			return CacheHit{}, false
		}
		bestHash, bestEntry = hash, entry
	}

	bestEntry.lastSeen = now
	bestEntry.appendEmbedding(embedding)
	return CacheHit{
		Hash:         bestHash,
		VisitCount:   bestEntry.visitCount,
		CustomerType: bestEntry.customerType,
	}, true
}

// Put writes or replaces the entry for hash with a fresh single-embedding
// buffer. Called after every persistent resolution.
func (c *FaceCache) Put(hash string, embedding []float64, visitCount int, customerType vision.CustomerType, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		lastSeen:     now,
		visitCount:   visitCount,
		customerType: customerType,
	}
	entry.appendEmbedding(embedding)
	c.entries[hash] = entry
}

// Lookup returns the identity data for hash regardless of freshness. Used as
// the availability fallback when the identity store is unreachable.
func (c *FaceCache) Lookup(hash string) (CacheHit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hash]
	if !ok {
		return CacheHit{}, false
	}
	return CacheHit{Hash: hash, VisitCount: entry.visitCount, CustomerType: entry.customerType}, true
}

// Purge drops entries idle longer than the TTL and reports how many went.
func (c *FaceCache) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for h, entry := range c.entries {
		if now.Sub(entry.lastSeen) > c.ttl {
			delete(c.entries, h)
			purged++
		}
	}
	return purged
}

func (c *FaceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// bufferLen reports the ring-buffer size for a hash, for tests.
func (c *FaceCache) bufferLen(hash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[hash]; ok {
		return len(entry.embeddings)
	}
	return 0
}
