package activity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case PeriodYear, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period: %s", s)
	}
}

// Start truncates t (in UTC) to the first instant of its period.
func (p Period) Start(t time.Time) time.Time {
	t = t.UTC()
	if p == PeriodMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Metric is the value summed per bucket in progress charts.
type Metric string

const (
	MetricDistance      Metric = "distance"
	MetricCount         Metric = "count"
	MetricKudosCount    Metric = "kudos_count"
	MetricElevationGain Metric = "total_elevation_gain"
	MetricMovingTime    Metric = "moving_time"
)

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(s)); m {
	case MetricDistance, MetricCount, MetricKudosCount, MetricElevationGain, MetricMovingTime:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric: %s", s)
	}
}

// value is the contribution of one record: distance in km, moving time in
// seconds, elevation in meters.
func (m Metric) value(r Record) float64 {
	switch m {
	case MetricDistance:
		return r.Distance / 1000
	case MetricKudosCount:
		return float64(r.KudosCount)
	case MetricElevationGain:
		return r.TotalElevationGain
	case MetricMovingTime:
		return float64(r.MovingTime)
	default:
		return 1
	}
}

// PeriodTotal is one point of a progress series.
type PeriodTotal struct {
	Period time.Time `json:"period"`
	Type   string    `json:"type"`
	Value  float64   `json:"value"`
}

// AggregateByPeriod sums metric per (period, type). Only buckets that hold at
// least one record are returned, ordered by period then type.
func AggregateByPeriod(records []Record, period Period, metric Metric) []PeriodTotal {
	type bucketKey struct {
		start time.Time
		typ   string
	}
	index := make(map[bucketKey]int)
	var totals []PeriodTotal
	for _, r := range records {
		key := bucketKey{start: period.Start(r.StartDate), typ: r.Type}
		i, ok := index[key]
		if !ok {
			i = len(totals)
			index[key] = i
			totals = append(totals, PeriodTotal{Period: key.start, Type: key.typ})
		}
		totals[i].Value += metric.value(r)
	}

	for i := range totals {
		totals[i].Value = round2(totals[i].Value)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Period.Equal(totals[j].Period) {
			return totals[i].Period.Before(totals[j].Period)
		}
		return totals[i].Type < totals[j].Type
	})
	return totals
}

// WeekTotal is one Monday-based week of a sport.
type WeekTotal struct {
	Week       time.Time `json:"week"`
	DistanceKm float64   `json:"distance_km"`
	Count      int       `json:"count"`
}

// WeekStart returns midnight UTC of the Monday opening t's week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// WeeklyTotals sums distance and count per week for records whose type
// contains typ (so "Run" also covers "TrailRun"), within [from, to]. Every
// week from the one holding from to the one holding to is present; weeks
// without activity are zero.
func WeeklyTotals(records []Record, typ string, from, to time.Time) []WeekTotal {
	if to.Before(from) {
		return nil
	}

	first := WeekStart(from)
	weeks := int(WeekStart(to).Sub(first).Hours()/24)/7 + 1
	totals := make([]WeekTotal, weeks)
	for i := range totals {
		totals[i].Week = first.AddDate(0, 0, 7*i)
	}

	for _, r := range records {
		if !strings.Contains(r.Type, typ) || r.StartDate.Before(from) || r.StartDate.After(to) {
			continue
		}
		i := int(WeekStart(r.StartDate).Sub(first).Hours()/24) / 7
		totals[i].DistanceKm += r.Distance / 1000
		totals[i].Count++
	}

	for i := range totals {
		totals[i].DistanceKm = round2(totals[i].DistanceKm)
	}
	return totals
}
