package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/syndicate/ledger"
)

// naiveMondays walks day by day.
func naiveMondays(start, today time.Time) int {
	n := 0
	for d := ledger.DateOf(start); !d.After(ledger.DateOf(today)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Monday {
			n++
		}
	}
	return n
}

func TestCountMondaysSince_WeekBoundaries(t *testing.T) {
	// GIVEN: A Monday
	monday := ledger.NewDate(2025, time.August, 11)

	// THEN: The Monday itself counts, the following Sunday adds nothing,
	// the next Monday adds one
	assert.Equal(t, 1, ledger.CountMondaysSince(monday, monday))
	assert.Equal(t, 1, ledger.CountMondaysSince(monday, monday.AddDate(0, 0, 6)))
	assert.Equal(t, 2, ledger.CountMondaysSince(monday, monday.AddDate(0, 0, 7)))
}

func TestCountMondaysSince_SeasonExample(t *testing.T) {
	// GIVEN: Season starting Monday 11 Aug 2025
	start := ledger.NewDate(2025, time.August, 11)
	today := ledger.NewDate(2026, time.January, 19)

	// THEN: 24 Mondays have passed, inclusive
	assert.Equal(t, 24, ledger.CountMondaysSince(start, today))
}

func TestCountMondaysSince_BeforeStart(t *testing.T) {
	start := ledger.NewDate(2025, time.August, 11)
	assert.Equal(t, 0, ledger.CountMondaysSince(start, start.AddDate(0, 0, -1)))
	assert.Equal(t, 0, ledger.CountMondaysSince(start, start.AddDate(-1, 0, 0)))
}

func TestCountMondaysSince_NoMondayYet(t *testing.T) {
	// GIVEN: Season starting on a Tuesday
	tuesday := ledger.NewDate(2025, time.August, 12)

	// THEN: Nothing owed until the following Monday
	assert.Equal(t, 0, ledger.CountMondaysSince(tuesday, tuesday.AddDate(0, 0, 5)))
	assert.Equal(t, 1, ledger.CountMondaysSince(tuesday, tuesday.AddDate(0, 0, 6)))
}

func TestCountMondaysSince_MatchesNaiveIteration(t *testing.T) {
	// GIVEN: Every start day across a leap year and year boundaries
	// WHEN: Compared against day-by-day iteration for a spread of spans
	// THEN: Results agree exactly
	first := ledger.NewDate(2023, time.December, 1)
	spans := []int{0, 1, 5, 6, 7, 8, 13, 14, 29, 59, 60, 365, 366, 400}
	for i := 0; i < 500; i++ {
		start := first.AddDate(0, 0, i)
		for _, span := range spans {
			today := start.AddDate(0, 0, span)
			if !assert.Equal(t, naiveMondays(start, today), ledger.CountMondaysSince(start, today),
				"start=%s today=%s", start.Format("2006-01-02"), today.Format("2006-01-02")) {
				return
			}
		}
	}
}

func TestCountMondaysSince_IgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2025, time.August, 11, 23, 59, 0, 0, time.UTC)
	today := time.Date(2025, time.August, 18, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, ledger.CountMondaysSince(start, today))
}

func TestWeeksSince(t *testing.T) {
	start := ledger.NewDate(2025, time.August, 11)

	cases := []struct {
		days int
		want int
	}{
		{-3, 0},
		{0, 0},
		{6, 0},
		{7, 1},
		{13, 1},
		{14, 2},
		{41, 5},
		{42, 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ledger.WeeksSince(start, start.AddDate(0, 0, c.days)), "days=%d", c.days)
	}
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}
	from := time.Date(2025, time.March, 29, 12, 0, 0, 0, london)
	to := time.Date(2025, time.March, 31, 12, 0, 0, 0, london)
	assert.Equal(t, 2, ledger.DaysBetween(from, to))
	assert.Equal(t, -2, ledger.DaysBetween(to, from))
}

func TestFixedClock(t *testing.T) {
	clock := ledger.FixedClock(time.Date(2026, time.January, 19, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, ledger.NewDate(2026, time.January, 19), clock.Today())
}
