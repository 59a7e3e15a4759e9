package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 8, 0, 0, 0, time.UTC)
}

func progressRecords() []Record {
	return []Record{
		{ID: 1, Type: TypeRun, Distance: 5000, MovingTime: 1500, KudosCount: 3, TotalElevationGain: 20, StartDate: day(2023, 11, 5)},
		{ID: 2, Type: TypeRun, Distance: 10000, MovingTime: 3000, KudosCount: 1, TotalElevationGain: 55.5, StartDate: day(2024, 1, 2)},
		{ID: 3, Type: TypeRide, Distance: 40000, MovingTime: 5400, KudosCount: 7, TotalElevationGain: 300, StartDate: day(2024, 1, 20)},
		{ID: 4, Type: TypeRun, Distance: 7500, MovingTime: 2400, KudosCount: 2, TotalElevationGain: 10, StartDate: day(2024, 3, 9)},
	}
}

func TestParsePeriodAndMetric(t *testing.T) {
	p, err := ParsePeriod("Month")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)
	_, err = ParsePeriod("week")
	assert.EqualError(t, err, "unknown period: week")

	m, err := ParseMetric("kudos_count")
	require.NoError(t, err)
	assert.Equal(t, MetricKudosCount, m)
	_, err = ParseMetric("calories")
	assert.EqualError(t, err, "unknown metric: calories")
}

func TestAggregateByPeriod(t *testing.T) {
	testCases := []struct {
		name   string
		period Period
		metric Metric
		want   []PeriodTotal
	}{
		{
			name:   "yearly distance",
			period: PeriodYear,
			metric: MetricDistance,
			want: []PeriodTotal{
				{Period: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 5},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRide, Value: 40},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 17.5},
			},
		},
		{
			name:   "monthly count",
			period: PeriodMonth,
			metric: MetricCount,
			want: []PeriodTotal{
				{Period: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 1},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRide, Value: 1},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 1},
				{Period: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 1},
			},
		},
		{
			name:   "yearly kudos",
			period: PeriodYear,
			metric: MetricKudosCount,
			want: []PeriodTotal{
				{Period: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 3},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRide, Value: 7},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 3},
			},
		},
		{
			name:   "yearly elevation",
			period: PeriodYear,
			metric: MetricElevationGain,
			want: []PeriodTotal{
				{Period: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 20},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRide, Value: 300},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 65.5},
			},
		},
		{
			name:   "monthly moving time",
			period: PeriodMonth,
			metric: MetricMovingTime,
			want: []PeriodTotal{
				{Period: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 1500},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRide, Value: 5400},
				{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 3000},
				{Period: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Type: TypeRun, Value: 2400},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AggregateByPeriod(progressRecords(), tc.period, tc.metric))
		})
	}

	assert.Empty(t, AggregateByPeriod(nil, PeriodYear, MetricCount))
}

func TestAggregateByPeriod_UsesUTC(t *testing.T) {
	// 00:30 on Feb 1st at +02:00 is still January in UTC
	local := time.Date(2024, 2, 1, 0, 30, 0, 0, time.FixedZone("EET", 2*3600))
	got := AggregateByPeriod([]Record{{Type: TypeRun, StartDate: local}}, PeriodMonth, MetricCount)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got[0].Period)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, WeekStart(monday))
	assert.Equal(t, monday, WeekStart(time.Date(2024, 4, 3, 17, 0, 0, 0, time.UTC)))
	assert.Equal(t, monday, WeekStart(time.Date(2024, 4, 7, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, monday.AddDate(0, 0, 7), WeekStart(time.Date(2024, 4, 8, 6, 0, 0, 0, time.UTC)))
}

func TestWeeklyTotals(t *testing.T) {
	records := []Record{
		{Type: TypeRun, Distance: 5000, StartDate: day(2024, 4, 2)},
		{Type: "TrailRun", Distance: 12340, StartDate: day(2024, 4, 6)},
		{Type: TypeRide, Distance: 30000, StartDate: day(2024, 4, 3)},
		{Type: TypeRun, Distance: 8000, StartDate: day(2024, 4, 17)},
		// outside the window
		{Type: TypeRun, Distance: 9000, StartDate: day(2024, 3, 20)},
	}
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 21, 23, 59, 59, 0, time.UTC)

	runs := WeeklyTotals(records, TypeRun, from, to)
	assert.Equal(t, []WeekTotal{
		{Week: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), DistanceKm: 17.34, Count: 2},
		// empty week filled with zero
		{Week: time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC), DistanceKm: 0, Count: 0},
		{Week: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), DistanceKm: 8, Count: 1},
	}, runs)

	rides := WeeklyTotals(records, TypeRide, from, to)
	require.Len(t, rides, 3)
	assert.Equal(t, 1, rides[0].Count)
	assert.Equal(t, 30.0, rides[0].DistanceKm)
	assert.Zero(t, rides[1].Count)
	assert.Zero(t, rides[2].Count)

	swims := WeeklyTotals(records, TypeSwim, from, to)
	require.Len(t, swims, 3)
	for _, w := range swims {
		assert.Zero(t, w.Count)
		assert.Zero(t, w.DistanceKm)
	}

	// a window starting mid-week still opens on that week's Monday
	midWeek := WeeklyTotals(records, TypeRun, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), to)
	require.Len(t, midWeek, 2)
	assert.Equal(t, time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC), midWeek[0].Week)

	assert.Nil(t, WeeklyTotals(records, TypeRun, to, from))
}
