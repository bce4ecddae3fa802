package recurrence

import (
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine.
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	Cache        CacheConfig

	// Logger receives expansion traces. Nil keeps the engine silent.
	Logger *slog.Logger
}

// DefaultEngineConfig provides sensible defaults for production use.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	Cache:        DefaultCacheConfig,
}

// HighPerformanceConfig is optimized for high-traffic scenarios.
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	Cache: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},
}

// DisabledCacheConfig turns off caching entirely; every expansion is
// computed fresh.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	Cache:        CacheConfig{}, // Not used
}
