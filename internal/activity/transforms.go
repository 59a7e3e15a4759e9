package activity

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DistanceKm converts meters to kilometers rounded to two decimals.
func DistanceKm(meters float64) float64 {
	return math.Round(meters/10) / 100
}

// FormatMovingTime renders seconds as "h:mm".
func FormatMovingTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/3600, (seconds%3600)/60)
}

// FormatSplitTime renders seconds as "m:ss".
func FormatSplitTime(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func FilterByType(records []Record, types ...string) []Record {
	if len(types) == 0 {
		return records
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	var filtered []Record
	for _, r := range records {
		if allowed[r.Type] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// FilterByDateRange keeps records started within [from, to]. A zero bound is
// open.
func FilterByDateRange(records []Record, from, to time.Time) []Record {
	var filtered []Record
	for _, r := range records {
		if !from.IsZero() && r.StartDate.Before(from) {
			continue
		}
		if !to.IsZero() && r.StartDate.After(to) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// SortByStartDate sorts newest first.
func SortByStartDate(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartDate.After(records[j].StartDate)
	})
}

// View is the row shape served to the dashboard tables.
type View struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	StartDate     time.Time `json:"start_date"`
	DistanceKm    float64   `json:"distance_km"`
	MovingTime    string    `json:"moving_time"`
	ElevationGain float64   `json:"total_elevation_gain"`
	KudosCount    int       `json:"kudos_count"`
	AverageWatts  *float64  `json:"average_watts,omitempty"`
	OfficialTime  string    `json:"time,omitempty"`
}

func ToView(r Record) View {
	return View{
		ID:            r.ID,
		Name:          r.Name,
		Type:          r.Type,
		StartDate:     r.StartDate,
		DistanceKm:    DistanceKm(r.Distance),
		MovingTime:    FormatMovingTime(r.MovingTime),
		ElevationGain: r.TotalElevationGain,
		KudosCount:    r.KudosCount,
		AverageWatts:  r.AverageWatts,
		OfficialTime:  r.OfficialTime,
	}
}

func ToViews(records []Record) []View {
	views := make([]View, 0, len(records))
	for _, r := range records {
		views = append(views, ToView(r))
	}
	return views
}

// TypeSummary compares one activity type between a year and the year before.
type TypeSummary struct {
	Type           string  `json:"type"`
	Count          int     `json:"count"`
	DistanceKm     float64 `json:"distance_km"`
	PrevCount      int     `json:"prev_count"`
	PrevDistanceKm float64 `json:"prev_distance_km"`
	DeltaCount     int     `json:"delta_count"`
	DeltaKm        float64 `json:"delta_km"`
}

// YearlySummary aggregates SummaryTypes for year and year-1, by UTC start date.
func YearlySummary(records []Record, year int) []TypeSummary {
	index := make(map[string]int, len(SummaryTypes))
	summaries := make([]TypeSummary, len(SummaryTypes))
	for i, t := range SummaryTypes {
		index[t] = i
		summaries[i].Type = t
	}

	for _, r := range records {
		i, ok := index[r.Type]
		if !ok {
			continue
		}
		switch r.StartDate.UTC().Year() {
		case year:
			summaries[i].Count++
			summaries[i].DistanceKm += r.Distance / 1000
		case year - 1:
			summaries[i].PrevCount++
			summaries[i].PrevDistanceKm += r.Distance / 1000
		}
	}

	for i := range summaries {
		s := &summaries[i]
		s.DistanceKm = round2(s.DistanceKm)
		s.PrevDistanceKm = round2(s.PrevDistanceKm)
		s.DeltaCount = s.Count - s.PrevCount
		s.DeltaKm = round2(s.DistanceKm - s.PrevDistanceKm)
	}
	return summaries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
