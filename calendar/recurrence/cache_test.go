package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerd/libagenda/calendar"
)

func testCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:             time.Minute,
		MaxEntries:      10,
		CleanupInterval: time.Minute,
	}
}

func TestExpansionCache_SetGet(t *testing.T) {
	cache := NewExpansionCache(testCacheConfig())
	defer cache.Close()

	rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily, Interval: 2}
	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 31)}
	occurrences := []time.Time{at(2025, 1, 1, 9, 0), at(2025, 1, 3, 9, 0)}

	_, ok := cache.Get(rule, anchor, rng, nil)
	assert.False(t, ok, "miss expected before Set")

	cache.Set(rule, anchor, rng, nil, occurrences)

	got, ok := cache.Get(rule, anchor, rng, nil)
	require.True(t, ok)
	assert.Equal(t, occurrences, got)
}

func TestExpansionCache_KeyCoversInputs(t *testing.T) {
	cache := NewExpansionCache(testCacheConfig())
	defer cache.Close()

	rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily}
	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 31)}

	cache.Set(rule, anchor, rng, nil, []time.Time{anchor})

	tests := []struct {
		name     string
		rule     calendar.RecurrenceRule
		anchor   time.Time
		rng      calendar.DateRange
		excluded DaySet
	}{
		{"different interval", calendar.RecurrenceRule{Frequency: calendar.FreqDaily, Interval: 2}, anchor, rng, nil},
		{"different frequency", calendar.RecurrenceRule{Frequency: calendar.FreqWeekly}, anchor, rng, nil},
		{"different anchor", rule, at(2025, 1, 2, 9, 0), rng, nil},
		{"different range", rule, anchor, calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 2, 28)}, nil},
		{"exclusions added", rule, anchor, rng, NewDaySet(day(2025, 1, 5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := cache.Get(tt.rule, tt.anchor, tt.rng, tt.excluded)
			assert.False(t, ok, "varied input must not hit the original entry")
		})
	}
}

func TestExpansionCache_GetReturnsCopy(t *testing.T) {
	cache := NewExpansionCache(testCacheConfig())
	defer cache.Close()

	rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily}
	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 10)}

	cache.Set(rule, anchor, rng, nil, []time.Time{anchor})

	first, ok := cache.Get(rule, anchor, rng, nil)
	require.True(t, ok)
	first[0] = at(1999, 1, 1, 0, 0)

	second, ok := cache.Get(rule, anchor, rng, nil)
	require.True(t, ok)
	assert.Equal(t, anchor, second[0], "mutating a returned slice must not poison the cache")
}

func TestExpansionCache_Expiry(t *testing.T) {
	config := testCacheConfig()
	config.TTL = time.Millisecond
	cache := NewExpansionCache(config)
	defer cache.Close()

	rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily}
	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 10)}

	cache.Set(rule, anchor, rng, nil, []time.Time{anchor})
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(rule, anchor, rng, nil)
	assert.False(t, ok, "expired entry must miss")
}

func TestExpansionCache_EvictsOverLimit(t *testing.T) {
	config := testCacheConfig()
	config.MaxEntries = 3
	cache := NewExpansionCache(config)
	defer cache.Close()

	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 10)}

	for i := 1; i <= 5; i++ {
		rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily, Interval: i}
		cache.Set(rule, anchor, rng, nil, []time.Time{anchor})
	}

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.TotalEntries, 3)
}

func TestExpansionCache_Stats(t *testing.T) {
	cache := NewExpansionCache(testCacheConfig())
	defer cache.Close()

	assert.Equal(t, CacheStats{}, cache.Stats())

	rule := calendar.RecurrenceRule{Frequency: calendar.FreqDaily}
	anchor := at(2025, 1, 1, 9, 0)
	rng := calendar.DateRange{Start: day(2025, 1, 1), End: day(2025, 1, 10)}
	cache.Set(rule, anchor, rng, nil, []time.Time{anchor})

	stats := cache.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveEntries)
	assert.Equal(t, 0, stats.ExpiredEntries)
}
