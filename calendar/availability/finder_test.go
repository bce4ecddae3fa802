package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerd/libagenda/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func oneDay(d time.Time) *calendar.DateRange {
	return &calendar.DateRange{Start: d, End: d}
}

func TestFindFreeTimeSlots_TwoUsersOverlappingMornings(t *testing.T) {
	finder := NewFinder()

	alice := uuid.New()
	bob := uuid.New()
	d := day(2025, 1, 7)

	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		{OwnerID: alice, Start: at(2025, 1, 7, 9, 0), End: at(2025, 1, 7, 10, 0)},
		{OwnerID: alice, Start: at(2025, 1, 7, 11, 0), End: at(2025, 1, 7, 12, 0)},
		{OwnerID: bob, Start: at(2025, 1, 7, 10, 0), End: at(2025, 1, 7, 11, 0)},
	})

	slots := finder.FindFreeTimeSlots([]uuid.UUID{alice, bob}, busy, 1, SearchOptions{Range: oneDay(d)})

	// Every hour before noon has at least one busy user; the first mutual
	// opening starts at 12:00.
	require.Len(t, slots, 1)
	slot := slots[0]
	assert.Equal(t, at(2025, 1, 7, 12, 0), slot.Start)
	assert.Equal(t, at(2025, 1, 7, 13, 0), slot.End)
	assert.Equal(t, 1.0, slot.Confidence)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, slot.AvailableUserIDs)
}

func TestFindFreeTimeSlots_EmptyUserList(t *testing.T) {
	finder := NewFinder()
	slots := finder.FindFreeTimeSlots(nil, nil, 1, SearchOptions{})
	assert.Empty(t, slots)
}

func TestFindFreeTimeSlots_SlotDurationInvariant(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	d := day(2025, 1, 7)
	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		{OwnerID: user, Start: at(2025, 1, 7, 10, 30), End: at(2025, 1, 7, 11, 0)},
	})

	for _, hours := range []float64{0.5, 1, 1.5, 2} {
		slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, busy, hours, SearchOptions{Range: oneDay(d)})
		require.NotEmpty(t, slots, "duration %v", hours)
		for _, slot := range slots {
			assert.Equal(t, time.Duration(hours*float64(time.Hour)), slot.End.Sub(slot.Start))
			assert.Equal(t, hours, slot.DurationHours)
		}
	}
}

func TestFindFreeTimeSlots_MergesOverlappingBusyAcrossUsers(t *testing.T) {
	finder := NewFinder()

	alice := uuid.New()
	bob := uuid.New()
	d := day(2025, 1, 7)

	// 10-12 and 11-13 merge into one busy block 10-13.
	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		{OwnerID: alice, Start: at(2025, 1, 7, 10, 0), End: at(2025, 1, 7, 12, 0)},
		{OwnerID: bob, Start: at(2025, 1, 7, 11, 0), End: at(2025, 1, 7, 13, 0)},
	})

	slots := finder.FindFreeTimeSlots([]uuid.UUID{alice, bob}, busy, 1, SearchOptions{Range: oneDay(d)})

	require.Len(t, slots, 2)
	starts := []time.Time{slots[0].Start, slots[1].Start}
	assert.Contains(t, starts, at(2025, 1, 7, 9, 0), "gap before the merged block")
	assert.Contains(t, starts, at(2025, 1, 7, 13, 0), "gap after the merged block")
	for _, slot := range slots {
		assert.False(t, slot.Start.Before(at(2025, 1, 7, 9, 0)))
		assert.True(t, slot.Start.Equal(at(2025, 1, 7, 9, 0)) || !slot.Start.Before(at(2025, 1, 7, 13, 0)),
			"no slot may start inside the merged block")
	}
}

func TestFindFreeTimeSlots_FreeUserGetsWholeWindow(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	d := day(2025, 1, 7)

	// No busy data at all: the user is free all day, one bite at 09:00.
	slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, 2, SearchOptions{Range: oneDay(d)})

	require.Len(t, slots, 1)
	assert.Equal(t, at(2025, 1, 7, 9, 0), slots[0].Start)
	assert.Equal(t, at(2025, 1, 7, 11, 0), slots[0].End)
	assert.Equal(t, 1.0, slots[0].Confidence)
}

func TestFindFreeTimeSlots_CustomWindow(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	d := day(2025, 1, 7)
	window := &calendar.TimeWindow{Start: "14:00", End: "18:00"}

	slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, 1,
		SearchOptions{Range: oneDay(d), Window: window})

	require.Len(t, slots, 1)
	assert.Equal(t, at(2025, 1, 7, 14, 0), slots[0].Start)
}

func TestFindFreeTimeSlots_UnparseableWindowFallsBack(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	d := day(2025, 1, 7)
	window := &calendar.TimeWindow{Start: "whenever", End: "late"}

	slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, 1,
		SearchOptions{Range: oneDay(d), Window: window})

	require.Len(t, slots, 1)
	assert.Equal(t, at(2025, 1, 7, 9, 0), slots[0].Start, "bad window degrades to 09:00-17:00")
}

func TestFindFreeTimeSlots_DefaultRangeFromNow(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	now := at(2025, 1, 7, 8, 0)

	slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, 1,
		SearchOptions{Now: func() time.Time { return now }})

	// Day 0 through day 30, inclusive.
	require.Len(t, slots, DefaultRangeDays+1)
	assert.Equal(t, at(2025, 1, 7, 9, 0), slots[0].Start)
	assert.Equal(t, at(2025, 2, 6, 9, 0), slots[len(slots)-1].Start)

	// Equal confidence ranks by start time ascending.
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].Start.After(slots[i-1].Start))
	}
}

func TestFindFreeTimeSlots_NoZeroConfidenceSlots(t *testing.T) {
	finder := NewFinder()

	alice := uuid.New()
	bob := uuid.New()
	d := day(2025, 1, 7)

	// Bob is blocked for the whole window every day.
	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		{OwnerID: bob, Start: at(2025, 1, 7, 0, 0), End: at(2025, 1, 8, 0, 0)},
		{OwnerID: alice, Start: at(2025, 1, 7, 9, 0), End: at(2025, 1, 7, 16, 0)},
	})

	slots := finder.FindFreeTimeSlots([]uuid.UUID{alice, bob}, busy, 1, SearchOptions{Range: oneDay(d)})

	for _, slot := range slots {
		assert.Greater(t, slot.Confidence, 0.0)
		assert.NotEmpty(t, slot.AvailableUserIDs)
	}
}

func TestFindFreeTimeSlots_MultiDayEventBlocksDay(t *testing.T) {
	finder := NewFinder()

	user := uuid.New()
	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		// Conference spanning three days.
		{OwnerID: user, Start: at(2025, 1, 6, 12, 0), End: at(2025, 1, 9, 12, 0)},
	})

	rng := &calendar.DateRange{Start: day(2025, 1, 7), End: day(2025, 1, 8)}
	slots := finder.FindFreeTimeSlots([]uuid.UUID{user}, busy, 1, SearchOptions{Range: rng})

	assert.Empty(t, slots, "fully spanned days have no free window")
}

func TestFindFreeTimeSlots_NonPositiveDuration(t *testing.T) {
	finder := NewFinder()
	user := uuid.New()

	assert.Empty(t, finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, 0, SearchOptions{}))
	assert.Empty(t, finder.FindFreeTimeSlots([]uuid.UUID{user}, calendar.BusyCalendar{}, -2, SearchOptions{}))
}

func TestFindFreeTimeSlots_Deterministic(t *testing.T) {
	finder := NewFinder()

	alice := uuid.New()
	bob := uuid.New()
	d := day(2025, 1, 7)
	busy := calendar.NewBusyCalendar([]calendar.BusyInterval{
		{OwnerID: alice, Start: at(2025, 1, 7, 10, 0), End: at(2025, 1, 7, 11, 0)},
		{OwnerID: bob, Start: at(2025, 1, 7, 14, 0), End: at(2025, 1, 7, 15, 0)},
	})
	users := []uuid.UUID{alice, bob}

	first := finder.FindFreeTimeSlots(users, busy, 1, SearchOptions{Range: oneDay(d)})
	second := finder.FindFreeTimeSlots(users, busy, 1, SearchOptions{Range: oneDay(d)})
	assert.Equal(t, first, second)
}
