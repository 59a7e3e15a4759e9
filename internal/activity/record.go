package activity

import (
	"time"

	"github.com/2beens/stravadash/internal/strava"
)

const (
	TypeRun  = "Run"
	TypeRide = "Ride"
	TypeSwim = "Swim"
	TypeGolf = "Golf"
	TypeWalk = "Walk"
)

// SummaryTypes are the activity types shown in the yearly summary.
var SummaryTypes = []string{TypeRun, TypeRide, TypeSwim, TypeGolf, TypeWalk}

// Record is an activity projected to the exported column set.
type Record struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	KudosCount         int       `json:"kudos_count"`
	CommentCount       int       `json:"comment_count"`
	AthleteCount       int       `json:"athlete_count"`
	// encoded summary polyline
	Map          string   `json:"map"`
	AverageWatts *float64 `json:"average_watts,omitempty"`
	// official result scraped from the description, PB efforts only
	OfficialTime string `json:"time,omitempty"`
}

func FromStrava(a strava.Activity) Record {
	return Record{
		ID:                 a.ID,
		Name:               a.Name,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		TotalElevationGain: a.TotalElevationGain,
		Type:               a.Type,
		StartDate:          a.StartDate.UTC(),
		KudosCount:         a.KudosCount,
		CommentCount:       a.CommentCount,
		AthleteCount:       a.AthleteCount,
		Map:                a.Map.SummaryPolyline,
		AverageWatts:       a.AverageWatts,
	}
}

func Normalize(activities []strava.Activity) []Record {
	records := make([]Record, 0, len(activities))
	for _, a := range activities {
		records = append(records, FromStrava(a))
	}
	return records
}
