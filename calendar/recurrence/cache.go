package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plannerd/libagenda/calendar"
)

// cacheEntry represents one cached expansion result.
type cacheEntry struct {
	occurrences []time.Time
	expiresAt   time.Time
	accessedAt  time.Time
}

// ExpansionCache caches GenerateOccurrences results. Expansion is
// deterministic, so a hit is indistinguishable from recomputation apart from
// speed.
type ExpansionCache struct {
	entries         map[string]*cacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// CacheConfig holds configuration for the expansion cache.
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for expansion caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewExpansionCache creates a cache with the given configuration and starts
// its cleanup goroutine. Call Close when done with the cache.
func NewExpansionCache(config CacheConfig) *ExpansionCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &ExpansionCache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// cacheKey hashes every input that affects an expansion result.
func cacheKey(rule calendar.RecurrenceRule, anchorStart time.Time, rng calendar.DateRange, excluded DaySet) string {
	hasher := sha256.New()

	fmt.Fprintf(hasher, "%s|%d|%v|%d|%d|%d|",
		rule.Frequency, rule.Interval, rule.DaysOfWeek, rule.DayOfMonth, rule.MonthOfYear, rule.Count)
	if rule.EndDate != nil {
		hasher.Write([]byte(rule.EndDate.Format(time.RFC3339Nano)))
	}

	hasher.Write([]byte(anchorStart.Format(time.RFC3339Nano)))
	hasher.Write([]byte(rng.Start.Format(time.RFC3339Nano)))
	hasher.Write([]byte(rng.End.Format(time.RFC3339Nano)))

	// Map iteration order is random; sort the day keys first.
	days := make([]string, 0, len(excluded))
	for day := range excluded {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		hasher.Write([]byte(day))
	}

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached expansion if it exists and has not expired. The
// returned slice is a copy; callers may modify it freely.
func (c *ExpansionCache) Get(rule calendar.RecurrenceRule, anchorStart time.Time, rng calendar.DateRange, excluded DaySet) ([]time.Time, bool) {
	key := cacheKey(rule, anchorStart, rng, excluded)

	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	c.mutex.Lock()
	entry.accessedAt = now
	result := make([]time.Time, len(entry.occurrences))
	copy(result, entry.occurrences)
	c.mutex.Unlock()

	return result, true
}

// Set stores an expansion result in the cache.
func (c *ExpansionCache) Set(rule calendar.RecurrenceRule, anchorStart time.Time, rng calendar.DateRange, excluded DaySet, occurrences []time.Time) {
	key := cacheKey(rule, anchorStart, rng, excluded)
	now := time.Now()

	stored := make([]time.Time, len(occurrences))
	copy(stored, occurrences)

	entry := &cacheEntry{
		occurrences: stored,
		expiresAt:   now.Add(c.ttl),
		accessedAt:  now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries and the least recently accessed entries
// when over the limit. Caller must hold the write lock.
func (c *ExpansionCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) > c.maxEntries {
		type keyAccess struct {
			key        string
			accessedAt time.Time
		}

		keyAccessList := make([]keyAccess, 0, len(c.entries))
		for key, entry := range c.entries {
			keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.accessedAt})
		}

		sort.Slice(keyAccessList, func(i, j int) bool {
			return keyAccessList[i].accessedAt.Before(keyAccessList[j].accessedAt)
		})

		entriesToRemove := len(c.entries) - c.maxEntries
		for i := 0; i < entriesToRemove && i < len(keyAccessList); i++ {
			delete(c.entries, keyAccessList[i].key)
		}
	}
}

// cleanupLoop runs periodic cleanup.
func (c *ExpansionCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache.
func (c *ExpansionCache) Close() {
	close(c.stopCleanup)
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics.
func (c *ExpansionCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
	}
}

// CacheStats provides information about cache contents.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
