package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/services/providers"
)

// Config tunes the response cache
type Config struct {
	// Capacity is the maximum number of entries after any Set completes
	Capacity int

	// DefaultTTL applies when Set is called without an explicit TTL
	DefaultTTL time.Duration

	// WarmupTTL applies to seeded canonical entries
	WarmupTTL time.Duration

	// MinLength and MaxLength bound the cacheable message size in bytes
	MinLength int
	MaxLength int

	// ScoreWeight is how many milliseconds of recency one access is worth
	// in the eviction score
	ScoreWeight int64

	// CleanupInterval is how often the background sweep removes expired
	// entries
	CleanupInterval time.Duration
}

// DefaultConfig returns the standard cache tuning
func DefaultConfig() Config {
	return Config{
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		WarmupTTL:       24 * time.Hour,
		MinLength:       2,
		MaxLength:       500,
		ScoreWeight:     60_000,
		CleanupInterval: time.Minute,
	}
}

// entry is a single cached response with its bookkeeping fields
type entry struct {
	payload        providers.NormalizedResponse
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// Cache is an in-memory response cache with lazy expiry and two-phase
// eviction. It is advisory: a miss is always a safe answer, so callers
// treat any cache anomaly as miss behavior rather than a request failure.
type Cache struct {
	mu      sync.RWMutex
	config  Config
	entries map[string]*entry

	hits      uint64
	misses    uint64
	evictions uint64

	warmed bool

	logger *zap.Logger
}

// Stats is the diagnostic view of the cache
type Stats struct {
	Entries   int     `json:"entries"`
	Capacity  int     `json:"capacity"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Evictions uint64  `json:"evictions"`
	SizeBytes int     `json:"size_bytes"`
}

// New creates an empty cache
func New(cfg Config, logger *zap.Logger) *Cache {
	return &Cache{
		config:  cfg,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// ShouldCache reports whether a message/mode pair is safe to cache: the
// trimmed message must fall inside the configured length bounds and must not
// match any volatile-content pattern. Mode does not affect the decision but
// is part of the contract so the rule can tighten later without call-site
// changes.
func (c *Cache) ShouldCache(message, mode string) bool {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < c.config.MinLength || len(trimmed) > c.config.MaxLength {
		return false
	}
	if IsVolatile(trimmed) {
		return false
	}
	return true
}

// Key returns the deterministic fingerprint for a normalized message, mode
// and optional provider scope. Equal inputs always yield equal keys. The
// fingerprint is an opaque lookup token only and is never persisted across
// restarts.
func (c *Cache) Key(message, mode, providerScope string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	sum := sha256.Sum256([]byte(normalized + "|" + mode + "|" + providerScope))
	return hex.EncodeToString(sum[:16])
}

// Get looks up a cached response. Misses cover uncacheable messages, absent
// entries, and expired entries; expired entries are deleted on read. A hit
// bumps the entry's access bookkeeping and the global hit counter.
func (c *Cache) Get(message, mode string) (*providers.NormalizedResponse, bool) {
	if !c.ShouldCache(message, mode) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	key := c.Key(message, mode, "")
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if !ent.expiresAt.After(now) {
		// lazy expiry
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return nil, false
	}

	ent.accessCount++
	ent.lastAccessedAt = now
	c.hits++

	payload := ent.payload
	return &payload, true
}

// Set stores a response. Uncacheable messages and nil payloads are ignored.
// A non-positive ttl selects the configured default. The store never exceeds
// capacity after Set returns.
func (c *Cache) Set(message, mode string, payload *providers.NormalizedResponse, ttl time.Duration) {
	if payload == nil || !c.ShouldCache(message, mode) {
		return
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	key := c.Key(message, mode, "")
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, exists := c.entries[key]; exists {
		ent.payload = *payload
		ent.createdAt = now
		ent.expiresAt = now.Add(ttl)
		return
	}

	if len(c.entries) >= c.config.Capacity {
		c.evict(now)
	}

	c.entries[key] = &entry{
		payload:        *payload,
		createdAt:      now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
}

// evict runs the two-phase eviction: first remove every expired entry, then
// if the store is still at 90% of capacity or more, drop the lowest-scoring
// quarter by recency+frequency. Must be called with the write lock held.
func (c *Cache) evict(now time.Time) {
	expired := 0
	for key, ent := range c.entries {
		if !ent.expiresAt.After(now) {
			delete(c.entries, key)
			expired++
		}
	}
	c.evictions += uint64(expired)

	if len(c.entries)*10 < c.config.Capacity*9 {
		if expired > 0 {
			c.logger.Debug("cache eviction",
				zap.Int("expired", expired),
				zap.Int("remaining", len(c.entries)))
		}
		return
	}

	type scoredKey struct {
		key   string
		score int64
	}
	candidates := make([]scoredKey, 0, len(c.entries))
	for key, ent := range c.entries {
		candidates = append(candidates, scoredKey{
			key:   key,
			score: ent.lastAccessedAt.UnixMilli() + ent.accessCount*c.config.ScoreWeight,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	drop := len(candidates) / 4
	if drop < 1 {
		drop = 1
	}
	for _, candidate := range candidates[:drop] {
		delete(c.entries, candidate.key)
	}
	c.evictions += uint64(drop)

	c.logger.Debug("cache eviction",
		zap.Int("expired", expired),
		zap.Int("scored", drop),
		zap.Int("remaining", len(c.entries)))
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := 0
	for key, ent := range c.entries {
		size += len(key) +
			len(ent.payload.Content) +
			len(ent.payload.ReasoningTrace) +
			len(ent.payload.Mode) +
			len(ent.payload.Model)
	}

	return Stats{
		Entries:   len(c.entries),
		Capacity:  c.config.Capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   c.hitRate(),
		Evictions: c.evictions,
		SizeBytes: size,
	}
}

// hitRate returns the hit percentage; must be called with a lock held
func (c *Cache) hitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}

// Len returns the current number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries, keeping counters
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// CleanupExpired removes all expired entries and returns how many were
// dropped
func (c *Cache) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, ent := range c.entries {
		if !ent.expiresAt.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions += uint64(removed)

	return removed
}

// StartCleanupWorker runs a background goroutine that periodically removes
// expired entries. The goroutine exits when ctx is cancelled.
func (c *Cache) StartCleanupWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupExpired(); removed > 0 {
					c.logger.Debug("expired cache entries removed",
						zap.Int("count", removed))
				}
			}
		}
	}()
}
